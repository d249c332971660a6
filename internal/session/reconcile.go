package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/haanhng/caro-client-go/internal/pushio"
	"github.com/haanhng/caro-client-go/pkg/carodto"
)

// scheduleReconcileLocked arms (or re-arms) the debounced full-state fetch.
// Bursts of roster-affecting events within the window collapse into one
// read: scheduling replaces any outstanding timer.
func (s *Store) scheduleReconcileLocked() {
	if s.roomID == "" || s.fetcher == nil {
		return
	}
	s.reconcilePending = true
	if s.reconcileTimer != nil {
		s.reconcileTimer.Stop()
	}
	epoch := s.epoch
	s.reconcileTimer = time.AfterFunc(s.cfg.DebounceWindow, func() {
		s.runReconcile(epoch)
	})
}

// runReconcile performs the one-shot authoritative fetch. In-flight work is
// never cancelled; its result is discarded when the epoch or room moved on.
func (s *Store) runReconcile(epoch uint64) {
	s.mu.Lock()
	if epoch != s.epoch || !s.reconcilePending || s.fetchInFlight || s.roomID == "" {
		s.mu.Unlock()
		return
	}
	s.reconcilePending = false
	s.fetchInFlight = true
	roomID := s.roomID
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	snap, err := s.fetcher.FetchSession(ctx, roomID)
	cancel()

	var deleted bool
	s.mu.Lock()
	s.fetchInFlight = false
	switch {
	case epoch != s.epoch || s.roomID != roomID:
		// superseded by teardown or room change; discard
	case err != nil && errors.Is(err, pushio.ErrNotFound):
		s.log.Info("reconcile_room_gone", zap.String("room_id", roomID))
		s.teardownLocked()
		deleted = true
	case err != nil:
		// transient: leave state untouched, the next triggering event retries
		s.log.Warn("reconcile_fetch_failed", zap.String("room_id", roomID), zap.Error(err))
	default:
		s.applySnapshotLocked(snap)
		s.log.Debug("reconcile_applied", zap.String("room_id", roomID), zap.Int("roster", len(s.roster)))
	}
	// an event that arrived while the fetch was in flight set the pending
	// flag again; this snapshot predates that event, so arm another pass
	if epoch == s.epoch && s.roomID == roomID && s.reconcilePending {
		s.scheduleReconcileLocked()
	}
	s.mu.Unlock()

	if deleted {
		s.notify(Notice{Kind: "room-deleted"})
	}
	if err == nil || deleted {
		s.notifyChange()
	}
}

// applySnapshotLocked wholesale-replaces session, roster, and resolved seat
// from an authoritative snapshot.
func (s *Store) applySnapshotLocked(snap *carodto.SessionState) {
	s.sess = sessionFromSnapshot(snap)
	s.roster = rosterFromSlots(snap.Players)
	s.resolveSeatLocked()
}
