package session

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/haanhng/caro-client-go/pkg/carodto"
)

var (
	ErrNoSession       = errors.New("no active session")
	ErrUndoOutstanding = errors.New("undo request already outstanding")
	ErrNoPendingUndo   = errors.New("no pending undo request")
	ErrOwnUndoRequest  = errors.New("cannot decide own undo request")
	ErrNotGuest        = errors.New("only a guest identity can be renamed")
	ErrInvalidArgs     = errors.New("invalid arguments")
)

// JoinSession registers the local identity for a room. Joining a different
// room tears the previous mirror down first; the authoritative state
// arrives through roster-joined and the scheduled reconcile.
func (s *Store) JoinSession(ctx context.Context, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return ErrInvalidArgs
	}
	s.mu.Lock()
	if s.roomID != "" && s.roomID != roomID {
		s.teardownLocked()
	}
	s.roomID = roomID
	req := &carodto.JoinRoom{RoomID: roomID, Identity: s.id.Value, IsGuest: s.id.IsGuest()}
	s.scheduleReconcileLocked()
	s.mu.Unlock()

	s.notifyChange()
	return s.emitter.Emit(ctx, carodto.EmJoinRoom, req)
}

// SubmitMove sends the move request. The board is not touched locally: the
// authoritative move-applied event performs the mutation, so a rejection
// leaves nothing to roll back.
func (s *Store) SubmitMove(ctx context.Context, row, col int) error {
	if row < 0 || col < 0 {
		return ErrInvalidArgs
	}
	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()
	if roomID == "" {
		return ErrNoSession
	}
	return s.emitter.Emit(ctx, carodto.EmSubmitMove, &carodto.SubmitMove{RoomID: roomID, Row: row, Col: col})
}

// RequestUndo raises the two-party undo handshake. A second local request
// is blocked while one is outstanding; requests from the opposing seat are
// unaffected by this flag.
func (s *Store) RequestUndo(ctx context.Context, moveNumber int) error {
	if moveNumber < 0 {
		return ErrInvalidArgs
	}
	s.mu.Lock()
	roomID := s.roomID
	if roomID == "" {
		s.mu.Unlock()
		return ErrNoSession
	}
	if s.undoSent {
		s.mu.Unlock()
		return ErrUndoOutstanding
	}
	s.mu.Unlock()

	if err := s.emitter.Emit(ctx, carodto.EmRequestUndo, &carodto.RequestUndo{RoomID: roomID, MoveNumber: moveNumber}); err != nil {
		return err
	}
	s.mu.Lock()
	s.undoSent = true
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

// ApproveUndo accepts the opponent's pending request. Only the
// non-requesting seat may decide.
func (s *Store) ApproveUndo(ctx context.Context, moveNumber int) error {
	roomID, err := s.checkUndoDecision()
	if err != nil {
		return err
	}
	return s.emitter.Emit(ctx, carodto.EmApproveUndo, &carodto.ApproveUndo{RoomID: roomID, MoveNumber: moveNumber})
}

// RejectUndo declines the opponent's pending request.
func (s *Store) RejectUndo(ctx context.Context) error {
	roomID, err := s.checkUndoDecision()
	if err != nil {
		return err
	}
	return s.emitter.Emit(ctx, carodto.EmRejectUndo, &carodto.RoomRef{RoomID: roomID})
}

func (s *Store) checkUndoDecision() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomID == "" {
		return "", ErrNoSession
	}
	if s.pendingUndo == nil {
		return "", ErrNoPendingUndo
	}
	if s.seat.Valid() && s.pendingUndo.RequestedBy == s.seat {
		return "", ErrOwnUndoRequest
	}
	return s.roomID, nil
}

func (s *Store) Concede(ctx context.Context) error {
	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()
	if roomID == "" {
		return ErrNoSession
	}
	return s.emitter.Emit(ctx, carodto.EmConcede, &carodto.RoomRef{RoomID: roomID})
}

// BeginSession asks the server to start play and optimistically flips the
// local status for perceived latency. The flip fires at most once: the
// action is a no-op when the session is already past waiting. The
// authoritative session-started event overwrites the guess either way.
func (s *Store) BeginSession(ctx context.Context) error {
	s.mu.Lock()
	if s.roomID == "" {
		s.mu.Unlock()
		return ErrNoSession
	}
	if s.sess != nil && s.sess.Status != StatusWaiting {
		s.mu.Unlock()
		return nil
	}
	if s.sess != nil {
		s.sess.Status = StatusPlaying
	}
	roomID := s.roomID
	s.mu.Unlock()

	s.notifyChange()
	return s.emitter.Emit(ctx, carodto.EmBeginSession, &carodto.RoomRef{RoomID: roomID})
}

// RestartSession requests a fresh logical session in the same room. Local
// state waits for the authoritative session-reset event.
func (s *Store) RestartSession(ctx context.Context) error {
	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()
	if roomID == "" {
		return ErrNoSession
	}
	return s.emitter.Emit(ctx, carodto.EmRestartSession, &carodto.RoomRef{RoomID: roomID})
}

// LeaveSession notifies the server and tears local state down regardless of
// delivery: the local view must never stay stuck in a stale session.
func (s *Store) LeaveSession(ctx context.Context) error {
	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()
	if roomID == "" {
		return ErrNoSession
	}
	if err := s.emitter.Emit(ctx, carodto.EmLeaveRoom, &carodto.RoomRef{RoomID: roomID}); err != nil {
		s.log.Warn("leave_emit_failed", zap.String("room_id", roomID), zap.Error(err))
	}
	s.mu.Lock()
	s.teardownLocked()
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

// RenameGuest updates the guest display name locally, persists it, and
// echoes it to the peer. Nothing but the name changes.
func (s *Store) RenameGuest(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidArgs
	}
	s.mu.Lock()
	if !s.id.IsGuest() {
		s.mu.Unlock()
		return ErrNotGuest
	}
	roomID := s.roomID
	if roomID == "" {
		s.mu.Unlock()
		return ErrNoSession
	}
	s.id.Name = name
	for i := range s.roster {
		if s.seat.Valid() && s.roster[i].Seat == s.seat {
			s.roster[i].Name = name
		}
	}
	s.mu.Unlock()

	if s.names != nil {
		if err := s.names.SetGuestName(ctx, name); err != nil {
			s.log.Warn("guest_name_persist_failed", zap.Error(err))
		}
	}
	s.notifyChange()
	return s.emitter.Emit(ctx, carodto.EmRenameGuest, &carodto.RenameGuest{RoomID: roomID, Name: name})
}

func (s *Store) SendReaction(ctx context.Context, emoji string) error {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return ErrInvalidArgs
	}
	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()
	if roomID == "" {
		return ErrNoSession
	}
	return s.emitter.Emit(ctx, carodto.EmSendReaction, &carodto.SendReaction{RoomID: roomID, Emoji: emoji})
}
