package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hungvu25/Web-chat-HungVu/internal/event"
	"github.com/hungvu25/Web-chat-HungVu/internal/presence"
)

// PresenceService runs the reconciliation sweep and broadcasts the
// became-offline signals it produces. It backs both the periodic
// background loop and the manual cleanup endpoint.
type PresenceService interface {
	Sweep(ctx context.Context) int
	Run(ctx context.Context)
}

type presenceService struct {
	tracker   *presence.Tracker
	notifier  Notifier
	interval  time.Duration
	staleness time.Duration
	logger    *zap.Logger
}

func NewPresenceService(tracker *presence.Tracker, notifier Notifier, interval, staleness time.Duration, logger *zap.Logger) PresenceService {
	return &presenceService{
		tracker:   tracker,
		notifier:  notifier,
		interval:  interval,
		staleness: staleness,
		logger:    logger,
	}
}

// Sweep forces offline every durably-online user without a live
// connection or with stale activity, and broadcasts one status change
// per flipped user. Returns the number of users flipped.
func (s *presenceService) Sweep(ctx context.Context) int {
	flipped := s.tracker.Reconcile(ctx, s.staleness)
	for _, id := range flipped {
		ev, err := event.New(event.EventUserStatusChange, event.StatusChangePayload{
			UserID: id.Hex(),
			Online: false,
		})
		if err != nil {
			s.logger.Error("failed to encode status change", zap.Error(err))
			continue
		}
		s.notifier.Broadcast(ev)
	}
	return len(flipped)
}

// Run executes Sweep on a fixed cadence until the context is cancelled.
func (s *presenceService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
