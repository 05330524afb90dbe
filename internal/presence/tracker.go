// Package presence maintains the live-connection view of who is online.
// The durable online flag on the user document is reconciled against the
// in-memory connection sets: attach/detach flip it on the first and last
// connection, and a periodic sweep forces it back down for users whose
// disconnect event was lost.
package presence

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Store is the durable presence surface the tracker reconciles against.
// The user repository implements it.
type Store interface {
	SetOnline(ctx context.Context, id primitive.ObjectID, online bool) error
	TouchLastSeen(ctx context.Context, id primitive.ObjectID) error
	OnlineUserIDs(ctx context.Context) ([]primitive.ObjectID, error)
	StaleOnlineUserIDs(ctx context.Context, lastSeenBefore time.Time) ([]primitive.ObjectID, error)
	ForceOffline(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// Tracker owns the userID -> connection-set map. All mutation goes
// through Attach/Detach/Touch/Reconcile; everyone else only queries.
type Tracker struct {
	mu     sync.Mutex
	conns  map[string]map[string]struct{} // userID hex -> set of connection IDs
	owners map[string]string              // connection ID -> userID hex
	store  Store
	logger *zap.Logger
}

func NewTracker(store Store, logger *zap.Logger) *Tracker {
	return &Tracker{
		conns:  make(map[string]map[string]struct{}),
		owners: make(map[string]string),
		store:  store,
		logger: logger,
	}
}

// Attach registers a live connection under a user and reports whether
// the user just became online (first connection). The durable flag flip
// is best-effort: a store failure is logged and never surfaces to the
// connection lifecycle.
func (t *Tracker) Attach(ctx context.Context, userID primitive.ObjectID, connID string) bool {
	key := userID.Hex()

	t.mu.Lock()
	set, ok := t.conns[key]
	if !ok {
		set = make(map[string]struct{})
		t.conns[key] = set
	}
	set[connID] = struct{}{}
	t.owners[connID] = key
	becameOnline := len(set) == 1
	t.mu.Unlock()

	if err := t.store.SetOnline(ctx, userID, true); err != nil {
		t.logger.Warn("presence attach: online flag not persisted",
			zap.String("user_id", key),
			zap.Error(err),
		)
	}

	if becameOnline {
		t.logger.Info("user became online", zap.String("user_id", key), zap.String("conn_id", connID))
	}
	return becameOnline
}

// Detach removes a connection and reports the owning user and whether
// the user just became offline (last connection gone). Connections that
// never completed the user_connect handshake are unknown and a no-op.
func (t *Tracker) Detach(ctx context.Context, connID string) (primitive.ObjectID, bool) {
	t.mu.Lock()
	key, ok := t.owners[connID]
	if !ok {
		t.mu.Unlock()
		return primitive.NilObjectID, false
	}
	delete(t.owners, connID)

	set := t.conns[key]
	delete(set, connID)
	becameOffline := len(set) == 0
	if becameOffline {
		delete(t.conns, key)
	}
	t.mu.Unlock()

	userID, err := primitive.ObjectIDFromHex(key)
	if err != nil {
		return primitive.NilObjectID, false
	}

	if becameOffline {
		if err := t.store.SetOnline(ctx, userID, false); err != nil {
			t.logger.Warn("presence detach: offline flag not persisted",
				zap.String("user_id", key),
				zap.Error(err),
			)
		}
		t.logger.Info("user became offline", zap.String("user_id", key), zap.String("conn_id", connID))
	} else {
		// Other connections remain; just refresh activity.
		if err := t.store.TouchLastSeen(ctx, userID); err != nil {
			t.logger.Warn("presence detach: last seen not persisted",
				zap.String("user_id", key),
				zap.Error(err),
			)
		}
	}
	return userID, becameOffline
}

// Touch refreshes lastSeen on a heartbeat without changing the online flag.
func (t *Tracker) Touch(ctx context.Context, userID primitive.ObjectID) {
	if err := t.store.TouchLastSeen(ctx, userID); err != nil {
		t.logger.Warn("heartbeat: last seen not persisted",
			zap.String("user_id", userID.Hex()),
			zap.Error(err),
		)
	}
}

// IsLive reports whether the user has at least one attached connection.
func (t *Tracker) IsLive(userID primitive.ObjectID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns[userID.Hex()]) > 0
}

// Reconcile is the backstop against missed detach events. Every user
// durably marked online with zero attached connections, or whose
// lastSeen is older than the staleness threshold, is forced offline.
// The returned IDs each carry exactly one became-offline signal: the
// store flip is conditional on online=true, so a user already swept (or
// raced offline by a detach) is not reported again. Live-connection
// membership is recomputed at the moment each candidate is examined,
// never from a cached list, so a just-attached connection is respected.
func (t *Tracker) Reconcile(ctx context.Context, staleness time.Duration) []primitive.ObjectID {
	online, err := t.store.OnlineUserIDs(ctx)
	if err != nil {
		t.logger.Error("reconcile: online user query failed", zap.Error(err))
		return nil
	}

	stale, err := t.store.StaleOnlineUserIDs(ctx, time.Now().Add(-staleness))
	if err != nil {
		t.logger.Error("reconcile: stale user query failed", zap.Error(err))
		stale = nil
	}

	candidates := make(map[primitive.ObjectID]bool, len(online)+len(stale))
	for _, id := range online {
		candidates[id] = false // offline only if no live connection
	}
	for _, id := range stale {
		candidates[id] = true // stale: offline regardless of connections
	}

	var flipped []primitive.ObjectID
	for id, force := range candidates {
		if !force && t.IsLive(id) {
			continue
		}

		changed, err := t.store.ForceOffline(ctx, id)
		if err != nil {
			t.logger.Error("reconcile: force offline failed", zap.String("user_id", id.Hex()), zap.Error(err))
			continue
		}
		if changed {
			flipped = append(flipped, id)
		}
	}

	if len(flipped) > 0 {
		t.logger.Info("reconcile sweep flipped users offline", zap.Int("count", len(flipped)))
	}
	return flipped
}

