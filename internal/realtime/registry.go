package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Sender is the delivery side of a live connection. The websocket Connection
// implements it; tests substitute their own.
type Sender interface {
	Send(payload []byte) error
}

// envelope is the wire frame for every server→client event.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// group holds the member connections of one broadcast key. Each group owns
// its mutex so joins and leaves on different keys never contend.
type group struct {
	mu      sync.Mutex
	members map[string]Sender
}

// session tracks one live connection and the groups it currently belongs to,
// so Disconnect can unwind every membership.
type session struct {
	userID string
	sender Sender

	mu     sync.Mutex
	groups map[string]struct{}
}

// Registry maps live connections to the logical broadcast groups they belong
// to: one group per conversation and one personal group per user. It holds
// no durable state and is owned by the application container, not a package
// global.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex // guards the two maps only, never group membership
	groups   map[string]*group
	sessions map[string]*session
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		groups:   make(map[string]*group),
		sessions: make(map[string]*session),
	}
}

func userKey(userID string) string         { return "user-" + userID }
func conversationKey(convID string) string { return "conv-" + convID }

// Register adds a connection under the user's personal group. Registering
// the same connection twice is a no-op.
func (r *Registry) Register(connectionID, userID string, sender Sender) {
	r.mu.Lock()
	if _, ok := r.sessions[connectionID]; ok {
		r.mu.Unlock()
		return
	}
	r.sessions[connectionID] = &session{
		userID: userID,
		sender: sender,
		groups: make(map[string]struct{}),
	}
	r.mu.Unlock()

	r.join(connectionID, userKey(userID))
}

// JoinConversation subscribes the connection to a conversation group.
func (r *Registry) JoinConversation(connectionID, conversationID string) {
	r.join(connectionID, conversationKey(conversationID))
}

// LeaveConversation removes the connection from a conversation group.
func (r *Registry) LeaveConversation(connectionID, conversationID string) {
	r.leave(connectionID, conversationKey(conversationID))
}

// Disconnect removes the connection from every group it was in. Safe to call
// for connections that never completed registration.
func (r *Registry) Disconnect(connectionID string) {
	r.mu.Lock()
	sess, ok := r.sessions[connectionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, connectionID)
	r.mu.Unlock()

	sess.mu.Lock()
	keys := make([]string, 0, len(sess.groups))
	for key := range sess.groups {
		keys = append(keys, key)
	}
	sess.groups = make(map[string]struct{})
	sess.mu.Unlock()

	for _, key := range keys {
		r.removeMember(key, connectionID)
	}
}

// UserID reports the user a connection was registered under.
func (r *Registry) UserID(connectionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[connectionID]
	if !ok {
		return "", false
	}
	return sess.userID, true
}

// PublishToConversation fans an event out to every connection subscribed to
// the conversation group.
func (r *Registry) PublishToConversation(conversationID, event string, payload any) {
	r.publish(conversationKey(conversationID), event, payload)
}

// PublishToUser fans an event out to every live connection of one user.
func (r *Registry) PublishToUser(userID, event string, payload any) {
	r.publish(userKey(userID), event, payload)
}

// SendTo delivers an event to a single connection.
func (r *Registry) SendTo(connectionID, event string, payload any) {
	r.mu.RLock()
	sess, ok := r.sessions[connectionID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		r.logger.Error("marshaling event", "event", event, "error", err)
		return
	}
	if err := sess.sender.Send(data); err != nil {
		r.logger.Warn("delivering event", "event", event, "connection_id", connectionID, "error", err)
	}
}

func (r *Registry) publish(key, event string, payload any) {
	data, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		r.logger.Error("marshaling event", "event", event, "error", err)
		return
	}

	r.mu.RLock()
	g := r.groups[key]
	r.mu.RUnlock()
	if g == nil {
		return
	}

	// Snapshot members under the group lock, deliver outside it so a slow
	// client cannot stall joins and leaves on the same key.
	g.mu.Lock()
	members := make([]Sender, 0, len(g.members))
	for _, s := range g.members {
		members = append(members, s)
	}
	g.mu.Unlock()

	for _, s := range members {
		if err := s.Send(data); err != nil {
			r.logger.Warn("delivering event", "event", event, "group", key, "error", err)
		}
	}
}

func (r *Registry) join(connectionID, key string) {
	r.mu.RLock()
	sess, ok := r.sessions[connectionID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	g := r.getOrCreateGroup(key)
	g.mu.Lock()
	g.members[connectionID] = sess.sender
	g.mu.Unlock()

	sess.mu.Lock()
	sess.groups[key] = struct{}{}
	sess.mu.Unlock()
}

func (r *Registry) leave(connectionID, key string) {
	r.mu.RLock()
	sess := r.sessions[connectionID]
	r.mu.RUnlock()

	if sess != nil {
		sess.mu.Lock()
		delete(sess.groups, key)
		sess.mu.Unlock()
	}
	r.removeMember(key, connectionID)
}

func (r *Registry) getOrCreateGroup(key string) *group {
	r.mu.RLock()
	g := r.groups[key]
	r.mu.RUnlock()
	if g != nil {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g = r.groups[key]; g == nil {
		g = &group{members: make(map[string]Sender)}
		r.groups[key] = g
	}
	return g
}

func (r *Registry) removeMember(key, connectionID string) {
	r.mu.RLock()
	g := r.groups[key]
	r.mu.RUnlock()
	if g == nil {
		return
	}

	g.mu.Lock()
	delete(g.members, connectionID)
	empty := len(g.members) == 0
	g.mu.Unlock()

	if !empty {
		return
	}
	// Drop the group entry once it is empty. Re-check under the write lock:
	// a concurrent join may have repopulated it.
	r.mu.Lock()
	if cur := r.groups[key]; cur == g {
		g.mu.Lock()
		if len(g.members) == 0 {
			delete(r.groups, key)
		}
		g.mu.Unlock()
	}
	r.mu.Unlock()
}
