package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hungvu25/Web-chat-HungVu/internal/event"
	"github.com/hungvu25/Web-chat-HungVu/internal/model"
	"github.com/hungvu25/Web-chat-HungVu/internal/repo"
)

// recordingNotifier captures everything the services would have pushed.
type recordingNotifier struct {
	mu        sync.Mutex
	published []publishedEvent
	broadcast []event.WsEvent
}

type publishedEvent struct {
	topic string
	ev    event.WsEvent
}

func (n *recordingNotifier) Publish(topic string, ev event.WsEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, publishedEvent{topic: topic, ev: ev})
}

func (n *recordingNotifier) Broadcast(ev event.WsEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcast = append(n.broadcast, ev)
}

func (n *recordingNotifier) publishedTo(topic string) []event.WsEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var events []event.WsEvent
	for _, p := range n.published {
		if p.topic == topic {
			events = append(events, p.ev)
		}
	}
	return events
}

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[primitive.ObjectID]*model.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repo.ErrEmailTaken
		}
		if existing.Username == user.Username {
			return repo.ErrUsernameTaken
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, repo.ErrUserNotFound
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repo.ErrUserNotFound
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repo.ErrUserNotFound
}

func (r *fakeUserRepo) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) UpdateProfile(ctx context.Context, id primitive.ObjectID, update model.ProfileUpdate) (*model.User, error) {
	r.mu.Lock()
	u, ok := r.users[id]
	if ok {
		if update.FirstName != "" {
			u.FirstName = update.FirstName
		}
		if update.LastName != "" {
			u.LastName = update.LastName
		}
		if update.Avatar != "" {
			u.Avatar = update.Avatar
		}
		if update.Address != "" {
			u.Address = update.Address
		}
		if update.DateOfBirth != nil {
			u.DateOfBirth = update.DateOfBirth
		}
	}
	r.mu.Unlock()
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *fakeUserRepo) SetOnline(_ context.Context, id primitive.ObjectID, online bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.Online = online
		u.LastSeen = time.Now()
	}
	return nil
}

func (r *fakeUserRepo) TouchLastSeen(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastSeen = time.Now()
	}
	return nil
}

func (r *fakeUserRepo) OnlineUserIDs(context.Context) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []primitive.ObjectID
	for id, u := range r.users {
		if u.Online {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeUserRepo) StaleOnlineUserIDs(_ context.Context, before time.Time) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []primitive.ObjectID
	for id, u := range r.users {
		if u.Online && u.LastSeen.Before(before) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeUserRepo) ForceOffline(_ context.Context, id primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok && u.Online {
		u.Online = false
		return true, nil
	}
	return false, nil
}

func (r *fakeUserRepo) MarkAllOffline(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, u := range r.users {
		if u.Online {
			u.Online = false
			count++
		}
	}
	return count, nil
}

// fakeFriendshipRepo is an in-memory FriendshipRepository enforcing the
// same unique-pair constraint the mongo index provides.
type fakeFriendshipRepo struct {
	mu    sync.Mutex
	edges map[primitive.ObjectID]*model.Friendship
}

func newFakeFriendshipRepo() *fakeFriendshipRepo {
	return &fakeFriendshipRepo{edges: make(map[primitive.ObjectID]*model.Friendship)}
}

func (r *fakeFriendshipRepo) Create(_ context.Context, requester, target primitive.ObjectID) (*model.Friendship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	first, second := model.CanonicalPair(requester, target)
	for _, edge := range r.edges {
		if edge.UserID1 == first && edge.UserID2 == second {
			return nil, repo.ErrFriendshipExists
		}
	}

	edge := &model.Friendship{
		ID:        primitive.NewObjectID(),
		UserID1:   first,
		UserID2:   second,
		Requester: requester,
		Status:    model.FriendshipPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.edges[edge.ID] = edge
	return edge, nil
}

func (r *fakeFriendshipRepo) FindByID(_ context.Context, id primitive.ObjectID) (*model.Friendship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if edge, ok := r.edges[id]; ok {
		copied := *edge
		return &copied, nil
	}
	return nil, repo.ErrFriendshipNotFound
}

func (r *fakeFriendshipRepo) SetAccepted(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	edge, ok := r.edges[id]
	if !ok || edge.Status != model.FriendshipPending {
		return repo.ErrFriendshipNotPending
	}
	edge.Status = model.FriendshipAccepted
	edge.UpdatedAt = time.Now()
	return nil
}

func (r *fakeFriendshipRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.edges[id]; !ok {
		return repo.ErrFriendshipNotFound
	}
	delete(r.edges, id)
	return nil
}

func (r *fakeFriendshipRepo) ListForUser(_ context.Context, userID primitive.ObjectID, status string) ([]model.Friendship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Friendship
	for _, edge := range r.edges {
		if edge.Status == status && edge.Involves(userID) {
			out = append(out, *edge)
		}
	}
	return out, nil
}

// fakeConversationRepo is an in-memory ConversationRepository.
type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[primitive.ObjectID]*model.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[primitive.ObjectID]*model.Conversation)}
}

func (r *fakeConversationRepo) GetOrCreate(_ context.Context, userA, userB primitive.ObjectID) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := model.PairKey(userA, userB)
	for _, conversation := range r.conversations {
		if conversation.ParticipantKey == key {
			copied := *conversation
			return &copied, nil
		}
	}

	first, second := model.CanonicalPair(userA, userB)
	conversation := &model.Conversation{
		ID:             primitive.NewObjectID(),
		ParticipantIDs: []primitive.ObjectID{first, second},
		ParticipantKey: key,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	r.conversations[conversation.ID] = conversation
	copied := *conversation
	return &copied, nil
}

func (r *fakeConversationRepo) FindByID(_ context.Context, id primitive.ObjectID) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conversation, ok := r.conversations[id]; ok {
		copied := *conversation
		return &copied, nil
	}
	return nil, repo.ErrConversationNotFound
}

func (r *fakeConversationRepo) ListForUser(_ context.Context, userID primitive.ObjectID) ([]model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Conversation
	for _, conversation := range r.conversations {
		if conversation.HasParticipant(userID) {
			out = append(out, *conversation)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *fakeConversationRepo) SetLastMessage(_ context.Context, id primitive.ObjectID, preview model.LastMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conversation, ok := r.conversations[id]; ok {
		conversation.LastMessage = &preview
		conversation.UpdatedAt = time.Now()
	}
	return nil
}

// fakeMessageRepo is an in-memory MessageRepository with the same paging
// semantics as the mongo implementation: newest first, limit+1 probe.
type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  []*model.Message
	insertErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (r *fakeMessageRepo) Insert(_ context.Context, msg *model.Message) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = primitive.NewObjectID()
	copied := *msg
	r.messages = append(r.messages, &copied)
	return nil
}

func (r *fakeMessageRepo) Page(_ context.Context, conversationID primitive.ObjectID, page, limit int64) ([]model.Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var inConversation []model.Message
	for _, msg := range r.messages {
		if msg.ConversationID == conversationID {
			inConversation = append(inConversation, *msg)
		}
	}
	// newest first, insertion order breaking ties
	sort.SliceStable(inConversation, func(i, j int) bool {
		return inConversation[i].CreatedAt.After(inConversation[j].CreatedAt)
	})

	skip := (page - 1) * limit
	if skip >= int64(len(inConversation)) {
		return nil, false, nil
	}

	window := inConversation[skip:]
	hasMore := int64(len(window)) > limit
	if hasMore {
		window = window[:limit]
	}
	return window, hasMore, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, conversationID, readerID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	now := time.Now()
	for _, msg := range r.messages {
		if msg.ConversationID == conversationID && msg.SenderID != readerID && !msg.Read {
			msg.Read = true
			msg.ReadAt = &now
			count++
		}
	}
	return count, nil
}

func (r *fakeMessageRepo) all() []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Message, len(r.messages))
	for i, msg := range r.messages {
		out[i] = *msg
	}
	return out
}
