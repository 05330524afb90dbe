package service

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/hungvu25/Web-chat-HungVu/internal/event"
	"github.com/hungvu25/Web-chat-HungVu/internal/model"
	"github.com/hungvu25/Web-chat-HungVu/internal/repo"
)

// MessagePage is the paginated history response: messages in
// chronological order plus an exact hasMore flag.
type MessagePage struct {
	Messages []model.MessageView `json:"messages"`
	Page     int64               `json:"page"`
	HasMore  bool                `json:"hasMore"`
}

type ChatService interface {
	GetOrCreateConversation(ctx context.Context, actor *model.User, friendID primitive.ObjectID) (*model.ConversationView, error)
	ListConversations(ctx context.Context, actor *model.User) ([]model.ConversationView, error)
	Messages(ctx context.Context, actor *model.User, conversationID primitive.ObjectID, page, limit int64) (*MessagePage, error)
	Send(ctx context.Context, actor *model.User, conversationID primitive.ObjectID, content string) (*model.MessageView, error)
	MarkRead(ctx context.Context, actor *model.User, conversationID primitive.ObjectID) error
}

type chatService struct {
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	users         repo.UserRepository
	notifier      Notifier
	logger        *zap.Logger
}

func NewChatService(conversations repo.ConversationRepository, messages repo.MessageRepository, users repo.UserRepository, notifier Notifier, logger *zap.Logger) ChatService {
	return &chatService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		notifier:      notifier,
		logger:        logger,
	}
}

func (s *chatService) GetOrCreateConversation(ctx context.Context, actor *model.User, friendID primitive.ObjectID) (*model.ConversationView, error) {
	conversation, err := s.conversations.GetOrCreate(ctx, actor.ID, friendID)
	if err != nil {
		return nil, err
	}
	return s.resolveView(ctx, conversation)
}

func (s *chatService) ListConversations(ctx context.Context, actor *model.User) ([]model.ConversationView, error) {
	conversations, err := s.conversations.ListForUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	// Resolve every participant profile in one query.
	idSet := make(map[primitive.ObjectID]struct{})
	for _, conversation := range conversations {
		for _, id := range conversation.ParticipantIDs {
			idSet[id] = struct{}{}
		}
	}
	ids := make([]primitive.ObjectID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	profiles, err := s.profilesByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]model.ConversationView, 0, len(conversations))
	for _, conversation := range conversations {
		views = append(views, buildView(&conversation, profiles))
	}
	return views, nil
}

// Messages returns one page of history in chronological order. The store
// reads newest-first; the reversal here gives callers the append order.
func (s *chatService) Messages(ctx context.Context, actor *model.User, conversationID primitive.ObjectID, page, limit int64) (*MessagePage, error) {
	conversation, err := s.requireParticipant(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	newestFirst, hasMore, err := s.messages.Page(ctx, conversationID, page, limit)
	if err != nil {
		return nil, err
	}

	profiles, err := s.profilesByID(ctx, conversation.ParticipantIDs)
	if err != nil {
		return nil, err
	}

	views := make([]model.MessageView, len(newestFirst))
	for i := range newestFirst {
		msg := newestFirst[len(newestFirst)-1-i]
		views[i] = msg.View(profiles[msg.SenderID])
	}

	return &MessagePage{Messages: views, Page: page, HasMore: hasMore}, nil
}

// Send appends a message and fans it out. Sequence is strict: validate,
// persist the message, update the conversation preview, then publish the
// persisted result to the conversation topic. A failed publish changes
// nothing durable; subscribers recover on their next fetch.
func (s *chatService) Send(ctx context.Context, actor *model.User, conversationID primitive.ObjectID, content string) (*model.MessageView, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	if _, err := s.requireParticipant(ctx, actor, conversationID); err != nil {
		return nil, err
	}

	msg := &model.Message{
		ConversationID: conversationID,
		SenderID:       actor.ID,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, err
	}

	// Preview update is best-effort: the message is already durable.
	if err := s.conversations.SetLastMessage(ctx, conversationID, model.LastMessage{
		MessageID: msg.ID,
		SenderID:  actor.ID,
		Content:   msg.Content,
		SentAt:    msg.CreatedAt,
	}); err != nil {
		s.logger.Warn("conversation preview not updated",
			zap.String("conversation_id", conversationID.Hex()),
			zap.Error(err),
		)
	}

	view := msg.View(actor.Public())

	ev, err := event.New(event.EventNewMessage, view)
	if err != nil {
		s.logger.Error("failed to encode message event", zap.Error(err))
	} else {
		s.notifier.Publish(event.ConversationTopic(conversationID.Hex()), ev)
	}

	return &view, nil
}

// MarkRead flips read on every message in the conversation not authored
// by the reader. Idempotent.
func (s *chatService) MarkRead(ctx context.Context, actor *model.User, conversationID primitive.ObjectID) error {
	if _, err := s.requireParticipant(ctx, actor, conversationID); err != nil {
		return err
	}

	count, err := s.messages.MarkRead(ctx, conversationID, actor.ID)
	if err != nil {
		return err
	}

	s.logger.Debug("messages marked read",
		zap.String("conversation_id", conversationID.Hex()),
		zap.String("reader", actor.ID.Hex()),
		zap.Int64("count", count),
	)
	return nil
}

func (s *chatService) requireParticipant(ctx context.Context, actor *model.User, conversationID primitive.ObjectID) (*model.Conversation, error) {
	conversation, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(actor.ID) {
		return nil, ErrNotParticipant
	}
	return conversation, nil
}

func (s *chatService) resolveView(ctx context.Context, conversation *model.Conversation) (*model.ConversationView, error) {
	profiles, err := s.profilesByID(ctx, conversation.ParticipantIDs)
	if err != nil {
		return nil, err
	}
	view := buildView(conversation, profiles)
	return &view, nil
}

func (s *chatService) profilesByID(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]model.PublicUser, error) {
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

func buildView(conversation *model.Conversation, profiles map[primitive.ObjectID]model.PublicUser) model.ConversationView {
	participants := make([]model.PublicUser, 0, len(conversation.ParticipantIDs))
	for _, id := range conversation.ParticipantIDs {
		if profile, ok := profiles[id]; ok {
			participants = append(participants, profile)
		}
	}
	return model.ConversationView{
		ID:           conversation.ID,
		Participants: participants,
		LastMessage:  conversation.LastMessage,
		CreatedAt:    conversation.CreatedAt,
		UpdatedAt:    conversation.UpdatedAt,
	}
}
