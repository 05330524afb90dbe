package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/hungvu25/Web-chat-HungVu/internal/event"
	"github.com/hungvu25/Web-chat-HungVu/internal/model"
	"github.com/hungvu25/Web-chat-HungVu/internal/repo"
)

func testUser(username string) *model.User {
	return &model.User{
		ID:       primitive.NewObjectID(),
		Username: username,
		Email:    username + "@example.com",
	}
}

func newFriendFixture(users ...*model.User) (FriendService, *fakeFriendshipRepo, *recordingNotifier) {
	friendships := newFakeFriendshipRepo()
	notifier := &recordingNotifier{}
	svc := NewFriendService(friendships, newFakeUserRepo(users...), notifier, zap.NewNop())
	return svc, friendships, notifier
}

func TestSendRequestNotifiesTarget(t *testing.T) {
	alice := testUser("alice")
	bob := testUser("bob")
	svc, _, notifier := newFriendFixture(alice, bob)

	if err := svc.SendRequest(context.Background(), alice, "bob"); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	events := notifier.publishedTo(event.UserTopic(bob.ID.Hex()))
	if len(events) != 1 {
		t.Fatalf("expected 1 event on bob's topic, got %d", len(events))
	}
	if events[0].Event != event.EventFriendRequestReceived {
		t.Fatalf("expected %q, got %q", event.EventFriendRequestReceived, events[0].Event)
	}

	var notice FriendNotice
	if err := json.Unmarshal(events[0].Payload, &notice); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	if notice.Type != "friend_request" {
		t.Errorf("notice type = %q, want friend_request", notice.Type)
	}
	if notice.Sender.ID != alice.ID {
		t.Errorf("notice sender = %s, want %s", notice.Sender.ID.Hex(), alice.ID.Hex())
	}
}

func TestSendRequestToSelf(t *testing.T) {
	alice := testUser("alice")
	svc, _, notifier := newFriendFixture(alice)

	if err := svc.SendRequest(context.Background(), alice, "alice"); !errors.Is(err, ErrSelfRequest) {
		t.Fatalf("expected ErrSelfRequest, got %v", err)
	}
	if len(notifier.published) != 0 {
		t.Errorf("self request must not notify")
	}
}

func TestSendRequestUnknownTarget(t *testing.T) {
	alice := testUser("alice")
	svc, _, _ := newFriendFixture(alice)

	if err := svc.SendRequest(context.Background(), alice, "nobody"); !errors.Is(err, repo.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSendRequestDuplicateEitherDirection(t *testing.T) {
	alice := testUser("alice")
	bob := testUser("bob")
	svc, _, notifier := newFriendFixture(alice, bob)

	if err := svc.SendRequest(context.Background(), alice, "bob"); err != nil {
		t.Fatalf("first request: %v", err)
	}

	// Same direction and the reverse direction both hit the same edge.
	if err := svc.SendRequest(context.Background(), alice, "bob"); !errors.Is(err, repo.ErrFriendshipExists) {
		t.Fatalf("repeat request: expected ErrFriendshipExists, got %v", err)
	}
	if err := svc.SendRequest(context.Background(), bob, "alice"); !errors.Is(err, repo.ErrFriendshipExists) {
		t.Fatalf("reverse request: expected ErrFriendshipExists, got %v", err)
	}

	if got := len(notifier.published); got != 1 {
		t.Errorf("expected exactly 1 notification, got %d", got)
	}
}

func TestAcceptNotifiesRequesterOnce(t *testing.T) {
	alice := testUser("alice")
	bob := testUser("bob")
	svc, friendships, notifier := newFriendFixture(alice, bob)

	if err := svc.SendRequest(context.Background(), alice, "bob"); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	edge := onlyEdge(t, friendships)

	if err := svc.Accept(context.Background(), bob, edge.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	events := notifier.publishedTo(event.UserTopic(alice.ID.Hex()))
	if len(events) != 1 {
		t.Fatalf("expected 1 event on alice's topic, got %d", len(events))
	}
	if events[0].Event != event.EventFriendRequestAccepted {
		t.Fatalf("expected %q, got %q", event.EventFriendRequestAccepted, events[0].Event)
	}

	// A second accept is rejected and does not re-notify.
	if err := svc.Accept(context.Background(), bob, edge.ID); !errors.Is(err, ErrAlreadyAccepted) {
		t.Fatalf("second accept: expected ErrAlreadyAccepted, got %v", err)
	}
	if got := len(notifier.publishedTo(event.UserTopic(alice.ID.Hex()))); got != 1 {
		t.Errorf("second accept must not re-notify, got %d events", got)
	}
}

// staleReadFriendshipRepo reports the edge as still pending from
// FindByID after it was accepted, modeling a concurrent accept landing
// between another caller's read and its write.
type staleReadFriendshipRepo struct {
	*fakeFriendshipRepo
}

func (r *staleReadFriendshipRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Friendship, error) {
	edge, err := r.fakeFriendshipRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	edge.Status = model.FriendshipPending
	return edge, nil
}

func TestAcceptLosingTheRaceDoesNotNotify(t *testing.T) {
	alice := testUser("alice")
	bob := testUser("bob")
	friendships := newFakeFriendshipRepo()
	notifier := &recordingNotifier{}
	svc := NewFriendService(&staleReadFriendshipRepo{friendships}, newFakeUserRepo(alice, bob), notifier, zap.NewNop())

	if err := svc.SendRequest(context.Background(), alice, "bob"); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	edge := onlyEdge(t, friendships)

	// The winning accept flips the edge and notifies.
	if err := svc.Accept(context.Background(), bob, edge.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	// The losing accept sees a stale pending read, but the store only
	// updates a still-pending edge, so it fails without a second
	// notification.
	if err := svc.Accept(context.Background(), bob, edge.ID); !errors.Is(err, ErrAlreadyAccepted) {
		t.Fatalf("losing accept: expected ErrAlreadyAccepted, got %v", err)
	}

	if got := len(notifier.publishedTo(event.UserTopic(alice.ID.Hex()))); got != 1 {
		t.Errorf("expected exactly 1 accepted notification, got %d", got)
	}
}

func TestAcceptOnlyByRecipient(t *testing.T) {
	alice := testUser("alice")
	bob := testUser("bob")
	mallory := testUser("mallory")
	svc, friendships, _ := newFriendFixture(alice, bob, mallory)

	if err := svc.SendRequest(context.Background(), alice, "bob"); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	edge := onlyEdge(t, friendships)

	if err := svc.Accept(context.Background(), alice, edge.ID); !errors.Is(err, ErrNotRecipient) {
		t.Errorf("requester accept: expected ErrNotRecipient, got %v", err)
	}
	if err := svc.Accept(context.Background(), mallory, edge.ID); !errors.Is(err, ErrNotRecipient) {
		t.Errorf("outsider accept: expected ErrNotRecipient, got %v", err)
	}
}

func TestDeclineDeletesSilently(t *testing.T) {
	alice := testUser("alice")
	bob := testUser("bob")
	svc, friendships, notifier := newFriendFixture(alice, bob)

	if err := svc.SendRequest(context.Background(), alice, "bob"); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	edge := onlyEdge(t, friendships)
	sentSoFar := len(notifier.published)

	if err := svc.Decline(context.Background(), alice, edge.ID); !errors.Is(err, ErrNotRecipient) {
		t.Fatalf("requester decline: expected ErrNotRecipient, got %v", err)
	}
	if err := svc.Decline(context.Background(), bob, edge.ID); err != nil {
		t.Fatalf("Decline: %v", err)
	}

	if _, err := friendships.FindByID(context.Background(), edge.ID); !errors.Is(err, repo.ErrFriendshipNotFound) {
		t.Errorf("edge should be deleted, got %v", err)
	}
	if len(notifier.published) != sentSoFar {
		t.Errorf("decline must not notify")
	}

	// A fresh request after a decline is allowed.
	if err := svc.SendRequest(context.Background(), alice, "bob"); err != nil {
		t.Errorf("re-request after decline: %v", err)
	}
}

func TestRemoveByEitherEndpoint(t *testing.T) {
	alice := testUser("alice")
	bob := testUser("bob")
	mallory := testUser("mallory")
	svc, friendships, _ := newFriendFixture(alice, bob, mallory)

	if err := svc.SendRequest(context.Background(), alice, "bob"); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	edge := onlyEdge(t, friendships)
	if err := svc.Accept(context.Background(), bob, edge.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if err := svc.Remove(context.Background(), mallory, edge.ID); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("outsider remove: expected ErrNotParticipant, got %v", err)
	}
	if err := svc.Remove(context.Background(), alice, edge.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := friendships.FindByID(context.Background(), edge.ID); !errors.Is(err, repo.ErrFriendshipNotFound) {
		t.Errorf("edge should be deleted, got %v", err)
	}
}

func TestListRequestsAnnotatesDirection(t *testing.T) {
	alice := testUser("alice")
	bob := testUser("bob")
	carol := testUser("carol")
	svc, _, _ := newFriendFixture(alice, bob, carol)

	if err := svc.SendRequest(context.Background(), alice, "bob"); err != nil {
		t.Fatalf("SendRequest alice->bob: %v", err)
	}
	if err := svc.SendRequest(context.Background(), carol, "alice"); err != nil {
		t.Fatalf("SendRequest carol->alice: %v", err)
	}

	views, err := svc.ListRequests(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 pending requests, got %d", len(views))
	}

	byCounterpart := make(map[primitive.ObjectID]model.FriendRequestView)
	for _, v := range views {
		byCounterpart[v.Sender.ID] = v
	}

	sent, ok := byCounterpart[bob.ID]
	if !ok || sent.Type != "sent" {
		t.Errorf("request to bob should be annotated sent, got %+v", sent)
	}
	received, ok := byCounterpart[carol.ID]
	if !ok || received.Type != "received" {
		t.Errorf("request from carol should be annotated received, got %+v", received)
	}
}

func TestListFriendsCarriesFriendshipID(t *testing.T) {
	alice := testUser("alice")
	bob := testUser("bob")
	svc, friendships, _ := newFriendFixture(alice, bob)

	if err := svc.SendRequest(context.Background(), alice, "bob"); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	edge := onlyEdge(t, friendships)
	if err := svc.Accept(context.Background(), bob, edge.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	for _, userID := range []primitive.ObjectID{alice.ID, bob.ID} {
		friends, err := svc.ListFriends(context.Background(), userID)
		if err != nil {
			t.Fatalf("ListFriends(%s): %v", userID.Hex(), err)
		}
		if len(friends) != 1 {
			t.Fatalf("expected 1 friend for %s, got %d", userID.Hex(), len(friends))
		}
		if friends[0].FriendshipID != edge.ID {
			t.Errorf("friendship id = %s, want %s", friends[0].FriendshipID.Hex(), edge.ID.Hex())
		}
	}

	// Pending requests never show up in the friend list.
	requests, err := svc.ListRequests(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(requests) != 0 {
		t.Errorf("accepted edge should leave the pending list, got %d", len(requests))
	}
}

func onlyEdge(t *testing.T, friendships *fakeFriendshipRepo) *model.Friendship {
	t.Helper()
	friendships.mu.Lock()
	defer friendships.mu.Unlock()
	if len(friendships.edges) != 1 {
		t.Fatalf("expected exactly 1 edge, got %d", len(friendships.edges))
	}
	for _, edge := range friendships.edges {
		copied := *edge
		return &copied
	}
	return nil
}
