package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/entity"
)

// memStore is an in-memory implementation of the three storage interfaces,
// matching the postgres semantics the service relies on.
type memStore struct {
	mu           sync.Mutex
	convs        map[string]*entity.Conversation
	participants map[string][]entity.Participant
	msgs         map[int64]*entity.Message
	nextID       int64
	markers      map[int64]map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		convs:        make(map[string]*entity.Conversation),
		participants: make(map[string][]entity.Participant),
		msgs:         make(map[int64]*entity.Message),
		markers:      make(map[int64]map[string]bool),
	}
}

func (s *memStore) GetOrCreate(_ context.Context, conv *entity.Conversation, participantIDs [2]string) (*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.convs[conv.ID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *conv
	s.convs[conv.ID] = &cp
	for _, uid := range participantIDs {
		s.participants[conv.ID] = append(s.participants[conv.ID], entity.Participant{
			ConversationID: conv.ID,
			UserID:         uid,
		})
	}
	out := cp
	return &out, nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, entity.ErrConversationNotFound
	}
	cp := *conv
	return &cp, nil
}

func (s *memStore) MarkActive(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[id]; ok {
		conv.IsEmpty = false
	}
	return nil
}

func (s *memStore) SetBlocked(_ context.Context, id string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return entity.ErrConversationNotFound
	}
	conv.IsBlocked = blocked
	return nil
}

func (s *memStore) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants[conversationID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) Participants(_ context.Context, conversationID string) ([]entity.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Participant(nil), s.participants[conversationID]...), nil
}

func (s *memStore) ListByUser(_ context.Context, userID string) ([]entity.ConversationPreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.ConversationPreview
	for id, conv := range s.convs {
		var other string
		member := false
		for _, p := range s.participants[id] {
			if p.UserID == userID {
				member = true
			} else {
				other = p.UserID
			}
		}
		if !member {
			continue
		}
		out = append(out, entity.ConversationPreview{
			Conversation: *conv,
			OtherUserID:  other,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Insert(_ context.Context, msg *entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg.ID = s.nextID
	cp := *msg
	s.msgs[msg.ID] = &cp
	return nil
}

func (s *memStore) getMessage(id int64) (*entity.Message, error) {
	msg, ok := s.msgs[id]
	if !ok {
		return nil, entity.ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

func (s *memStore) GetByMessageID(_ context.Context, id int64) (*entity.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMessage(id)
}

func (s *memStore) ListByConversation(_ context.Context, conversationID, viewerID string) ([]entity.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Message
	for _, msg := range s.msgs {
		if msg.ConversationID != conversationID {
			continue
		}
		if s.markers[msg.ID][viewerID] {
			continue
		}
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) MarkSeen(_ context.Context, conversationID, viewerID string, at time.Time) (int64, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lastID int64
	count := 0
	for _, msg := range s.msgs {
		if msg.ConversationID != conversationID || msg.SenderID == viewerID || msg.Seen {
			continue
		}
		msg.Seen = true
		t := at
		msg.SeenAt = &t
		count++
		if msg.ID > lastID {
			lastID = msg.ID
		}
	}
	return lastID, count, nil
}

func (s *memStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, id)
	delete(s.msgs, id)
	return nil
}

func (s *memStore) UnreadCount(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, msg := range s.msgs {
		if msg.SenderID == userID || msg.Seen {
			continue
		}
		member := false
		for _, p := range s.participants[msg.ConversationID] {
			if p.UserID == userID {
				member = true
			}
		}
		if !member || s.markers[msg.ID][userID] {
			continue
		}
		n++
	}
	return n, nil
}

func (s *memStore) Add(_ context.Context, messageID int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markers[messageID] == nil {
		s.markers[messageID] = make(map[string]bool)
	}
	s.markers[messageID][userID] = true
	return nil
}

func (s *memStore) AddAllForConversation(_ context.Context, conversationID, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var added int64
	for id, msg := range s.msgs {
		if msg.ConversationID != conversationID || s.markers[id][userID] {
			continue
		}
		if s.markers[id] == nil {
			s.markers[id] = make(map[string]bool)
		}
		s.markers[id][userID] = true
		added++
	}
	return added, nil
}

// messageRepo adapts memStore to MessageRepository: the conversation side
// already claims the GetByID name.
type messageRepo struct{ *memStore }

func (r messageRepo) GetByID(ctx context.Context, id int64) (*entity.Message, error) {
	return r.GetByMessageID(ctx, id)
}

// pubCall records one fan-out.
type pubCall struct {
	Scope   string // "conversation" or "user"
	Target  string
	Event   string
	Payload any
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []pubCall
}

func (f *fakePublisher) PublishToConversation(conversationID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pubCall{Scope: "conversation", Target: conversationID, Event: event, Payload: payload})
}

func (f *fakePublisher) PublishToUser(userID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pubCall{Scope: "user", Target: userID, Event: event, Payload: payload})
}

func (f *fakePublisher) byEvent(event string) []pubCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []pubCall
	for _, c := range f.calls {
		if c.Event == event {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakePublisher) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type fakeMedia struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (f *fakeMedia) DeleteAsset(_ context.Context, key string, _ entity.Variant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeMedia) IsTemporary(key string) bool {
	return strings.HasPrefix(key, "tmp/chat/")
}

type fakeDirectory struct {
	names map[string]string
	err   error
}

func (f *fakeDirectory) GetDisplayName(_ context.Context, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.names[userID], nil
}

type fakeCatalog struct {
	listings map[int64]*entity.ListingSummary
}

func (f *fakeCatalog) GetSummary(_ context.Context, listingID int64) (*entity.ListingSummary, error) {
	return f.listings[listingID], nil
}

// fixture wires a service against the in-memory collaborators with a frozen
// clock tests can advance.
type fixture struct {
	svc       *Service
	store     *memStore
	pub       *fakePublisher
	media     *fakeMedia
	directory *fakeDirectory
	catalog   *fakeCatalog
	clock     time.Time
}

func newFixture() *fixture {
	f := &fixture{
		store: newMemStore(),
		pub:   &fakePublisher{},
		media: &fakeMedia{},
		directory: &fakeDirectory{names: map[string]string{
			"alice": "Alice Tran",
			"bob":   "Bob Nguyen",
		}},
		catalog: &fakeCatalog{listings: map[int64]*entity.ListingSummary{
			42: {ID: 42, Title: "Mountain bike", Price: 1500000, ThumbnailURL: "https://cdn.example.com/listings/42.jpg"},
		}},
		clock: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = New(
		f.store,
		messageRepo{f.store},
		f.store,
		f.pub,
		f.media,
		f.directory,
		f.catalog,
		DefaultRecallWindow,
		logger,
	)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

// startConversation seeds an active two-party conversation and returns it.
func (f *fixture) startConversation(ctx context.Context, listingID int64) *entity.Conversation {
	conv, err := f.svc.StartConversation(ctx, StartConversationInput{
		User1ID:   "alice",
		User2ID:   "bob",
		ListingID: listingID,
	})
	if err != nil {
		panic(err)
	}
	return conv
}
