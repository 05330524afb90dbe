package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/hungvu25/Web-chat-HungVu/internal/event"
	"github.com/hungvu25/Web-chat-HungVu/internal/model"
	"github.com/hungvu25/Web-chat-HungVu/internal/repo"
)

// FriendNotice is the payload pushed to a user topic when a request is
// sent to them or accepted by them.
type FriendNotice struct {
	ID        primitive.ObjectID `json:"id"`
	Type      string             `json:"type"`
	Sender    model.PublicUser   `json:"sender"`
	CreatedAt time.Time          `json:"createdAt"`
}

type FriendService interface {
	SendRequest(ctx context.Context, actor *model.User, targetUsername string) error
	Accept(ctx context.Context, actor *model.User, friendshipID primitive.ObjectID) error
	Decline(ctx context.Context, actor *model.User, friendshipID primitive.ObjectID) error
	Remove(ctx context.Context, actor *model.User, friendshipID primitive.ObjectID) error
	ListRequests(ctx context.Context, userID primitive.ObjectID) ([]model.FriendRequestView, error)
	ListFriends(ctx context.Context, userID primitive.ObjectID) ([]model.FriendView, error)
}

type friendService struct {
	friendships repo.FriendshipRepository
	users       repo.UserRepository
	notifier    Notifier
	logger      *zap.Logger
}

func NewFriendService(friendships repo.FriendshipRepository, users repo.UserRepository, notifier Notifier, logger *zap.Logger) FriendService {
	return &friendService{
		friendships: friendships,
		users:       users,
		notifier:    notifier,
		logger:      logger,
	}
}

// SendRequest runs the orchestration sequence: validate the target,
// persist the pending edge, then push the notification built from the
// persisted edge. The uniqueness check lives in the store's index, so
// concurrent opposite-direction requests produce exactly one edge.
func (s *friendService) SendRequest(ctx context.Context, actor *model.User, targetUsername string) error {
	target, err := s.users.FindByUsername(ctx, targetUsername)
	if err != nil {
		return err
	}

	if target.ID == actor.ID {
		return ErrSelfRequest
	}

	edge, err := s.friendships.Create(ctx, actor.ID, target.ID)
	if err != nil {
		return err
	}

	s.notifyFriend(target.ID, event.EventFriendRequestReceived, FriendNotice{
		ID:        edge.ID,
		Type:      "friend_request",
		Sender:    actor.Public(),
		CreatedAt: edge.CreatedAt,
	})

	s.logger.Info("friend request sent",
		zap.String("friendship_id", edge.ID.Hex()),
		zap.String("requester", actor.ID.Hex()),
		zap.String("target", target.ID.Hex()),
	)
	return nil
}

// Accept flips a pending edge to accepted. Only the non-requester
// endpoint may accept, and a second accept is rejected without
// re-triggering the notification.
func (s *friendService) Accept(ctx context.Context, actor *model.User, friendshipID primitive.ObjectID) error {
	edge, err := s.friendships.FindByID(ctx, friendshipID)
	if err != nil {
		return err
	}

	if edge.Requester == actor.ID || !edge.Involves(actor.ID) {
		return ErrNotRecipient
	}
	if edge.Status == model.FriendshipAccepted {
		return ErrAlreadyAccepted
	}

	// The store only flips a still-pending edge, so a concurrent accept
	// that slipped in after the read above loses here and does not
	// produce a second notification.
	if err := s.friendships.SetAccepted(ctx, friendshipID); err != nil {
		if errors.Is(err, repo.ErrFriendshipNotPending) {
			return ErrAlreadyAccepted
		}
		return err
	}

	s.notifyFriend(edge.Requester, event.EventFriendRequestAccepted, FriendNotice{
		ID:        edge.ID,
		Type:      "friend_accepted",
		Sender:    actor.Public(),
		CreatedAt: time.Now(),
	})

	s.logger.Info("friend request accepted",
		zap.String("friendship_id", friendshipID.Hex()),
		zap.String("actor", actor.ID.Hex()),
	)
	return nil
}

// Decline deletes the edge. Permitted for the non-requester endpoint
// regardless of the edge's current status; no notification is sent, a
// declined request is simply unobservable to the requester.
func (s *friendService) Decline(ctx context.Context, actor *model.User, friendshipID primitive.ObjectID) error {
	edge, err := s.friendships.FindByID(ctx, friendshipID)
	if err != nil {
		return err
	}

	if edge.Requester == actor.ID || !edge.Involves(actor.ID) {
		return ErrNotRecipient
	}

	return s.friendships.Delete(ctx, friendshipID)
}

// Remove deletes the edge; either endpoint may unfriend, whatever the
// status. Hard delete, so re-friending starts a fresh edge.
func (s *friendService) Remove(ctx context.Context, actor *model.User, friendshipID primitive.ObjectID) error {
	edge, err := s.friendships.FindByID(ctx, friendshipID)
	if err != nil {
		return err
	}

	if !edge.Involves(actor.ID) {
		return ErrNotParticipant
	}

	return s.friendships.Delete(ctx, friendshipID)
}

// ListRequests returns the caller's pending edges annotated sent or
// received; Sender is always the counterparty so clients can render both
// directions from one shape.
func (s *friendService) ListRequests(ctx context.Context, userID primitive.ObjectID) ([]model.FriendRequestView, error) {
	edges, err := s.friendships.ListForUser(ctx, userID, model.FriendshipPending)
	if err != nil {
		return nil, err
	}

	profiles, err := s.counterpartProfiles(ctx, edges, userID)
	if err != nil {
		return nil, err
	}

	views := make([]model.FriendRequestView, 0, len(edges))
	for _, edge := range edges {
		counterpart, ok := profiles[edge.Counterpart(userID)]
		if !ok {
			continue
		}

		direction := "received"
		if edge.Requester == userID {
			direction = "sent"
		}

		views = append(views, model.FriendRequestView{
			ID:        edge.ID,
			Sender:    counterpart,
			Requester: edge.Requester,
			Type:      direction,
			Status:    edge.Status,
			CreatedAt: edge.CreatedAt,
		})
	}
	return views, nil
}

// ListFriends returns accepted edges as friend profiles plus the
// friendship id clients need for the unfriend call.
func (s *friendService) ListFriends(ctx context.Context, userID primitive.ObjectID) ([]model.FriendView, error) {
	edges, err := s.friendships.ListForUser(ctx, userID, model.FriendshipAccepted)
	if err != nil {
		return nil, err
	}

	profiles, err := s.counterpartProfiles(ctx, edges, userID)
	if err != nil {
		return nil, err
	}

	views := make([]model.FriendView, 0, len(edges))
	for _, edge := range edges {
		counterpart, ok := profiles[edge.Counterpart(userID)]
		if !ok {
			continue
		}
		views = append(views, model.FriendView{
			PublicUser:   counterpart,
			FriendshipID: edge.ID,
		})
	}
	return views, nil
}

func (s *friendService) counterpartProfiles(ctx context.Context, edges []model.Friendship, userID primitive.ObjectID) (map[primitive.ObjectID]model.PublicUser, error) {
	ids := make([]primitive.ObjectID, 0, len(edges))
	for _, edge := range edges {
		ids = append(ids, edge.Counterpart(userID))
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	profiles := make(map[primitive.ObjectID]model.PublicUser, len(users))
	for i := range users {
		profiles[users[i].ID] = users[i].Public()
	}
	return profiles, nil
}

func (s *friendService) notifyFriend(recipient primitive.ObjectID, name string, notice FriendNotice) {
	ev, err := event.New(name, notice)
	if err != nil {
		s.logger.Error("failed to encode friend notice", zap.String("event", name), zap.Error(err))
		return
	}
	s.notifier.Publish(event.UserTopic(recipient.Hex()), ev)
}
