package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/haanhng/caro-client-go/pkg/carodto"
)

type reactionInfo struct {
	seat  Seat
	emoji string
	name  string
}

// apply folds one validated event into state. Handlers patch in-memory
// state only; nothing here blocks on network I/O. Roster-affecting events
// additionally schedule a debounced reconciliation fetch.
func (s *Store) apply(ev any) {
	var notices []Notice
	var reaction *reactionInfo
	changed := false

	s.mu.Lock()
	switch ev := ev.(type) {
	case *carodto.RosterJoined:
		if s.roomID == "" || ev.RoomID != s.roomID {
			s.log.Debug("roster_joined_other_room", zap.String("room_id", ev.RoomID))
			break
		}
		changed = true
		s.roster = rosterFromSlots(ev.Roster)
		if s.sess != nil {
			if ev.Status != "" {
				if st, ok := parseStatus(ev.Status); ok {
					s.sess.Status = st
				}
			}
			if Seat(ev.Turn).Valid() {
				s.sess.Turn = Seat(ev.Turn)
			}
			s.patchOccupantsFromRosterLocked()
		}
		s.resolveSeatLocked()
		s.scheduleReconcileLocked()

	case *carodto.SeatFilled:
		changed = true
		s.upsertSlotLocked(PlayerSlot{
			ID:    ev.Slot.ID,
			Name:  ev.Slot.Name,
			Guest: ev.Slot.IsGuest,
			Seat:  Seat(ev.Slot.Seat),
		})
		if s.sess != nil {
			s.patchOccupantsFromRosterLocked()
		}
		s.resolveSeatLocked()
		s.scheduleReconcileLocked()

	case *carodto.SeatVacated:
		if ev.RoomID != "" && s.roomID != "" && ev.RoomID != s.roomID {
			break
		}
		changed = true
		s.removeSlotLocked(ev.Identity, Seat(ev.Seat))
		if ev.Session != nil {
			// immediate partial patch; may be incomplete (e.g. no rules
			// object), the scheduled fetch corrects it
			prev := s.sess
			s.sess = sessionFromSnapshot(ev.Session)
			if ev.Session.Rules == nil && prev != nil {
				s.sess.Rules = prev.Rules
			}
			if len(ev.Session.Players) > 0 {
				s.roster = rosterFromSlots(ev.Session.Players)
			}
		} else if ev.SessionReset && s.sess != nil {
			s.sess.Status = StatusWaiting
			s.sess.Turn = SeatNone
			s.sess.Winner = WinnerNone
			s.sess.LastMove = nil
			s.sess.WinningLine = nil
		}
		if ev.SessionReset {
			s.pendingUndo = nil
			s.undoSent = false
		}
		if ev.HostTransferred {
			s.log.Info("host_transferred", zap.String("room_id", s.roomID))
		}
		s.resolveSeatLocked()
		s.scheduleReconcileLocked()

	case *carodto.RoomDeleted:
		if s.roomID == "" || ev.RoomID != s.roomID {
			break
		}
		changed = true
		s.teardownLocked()
		notices = append(notices, Notice{Kind: "room-deleted"})

	case *carodto.MoveApplied:
		if s.sess == nil {
			s.log.Debug("move_applied_without_session")
			break
		}
		changed = true
		s.sess.Board = Board(ev.Board).Clone()
		s.sess.LastMove = &Coord{Row: ev.Move.Row, Col: ev.Move.Col}
		s.sess.Turn = Seat(ev.Turn)
		if ev.Move.Number > 0 {
			s.sess.MoveCount = ev.Move.Number
		} else {
			s.sess.MoveCount++
		}

	case *carodto.MoveRejected:
		notices = append(notices, Notice{Kind: "move-rejected", Text: ev.Message})

	case *carodto.ScoreUpdated:
		if s.sess != nil {
			s.sess.Score = ev.Score
			changed = true
		}

	case *carodto.UndoRequested:
		changed = true
		s.pendingUndo = &UndoRequest{RequestedBy: Seat(ev.RequestedBy), MoveNumber: ev.MoveNumber}
		if s.seat.Valid() && Seat(ev.RequestedBy) != s.seat {
			notices = append(notices, Notice{Kind: "undo-requested"})
		}

	case *carodto.UndoApproved:
		changed = true
		if s.sess != nil {
			s.sess.Board = Board(ev.Board).Clone()
			s.sess.LastMove = nil
			s.sess.MoveCount = ev.MoveNumber
			s.sess.WinningLine = nil
		}
		s.pendingUndo = nil
		s.undoSent = false
		notices = append(notices, Notice{Kind: "undo-approved"})

	case *carodto.UndoRejected:
		wasLocal := s.undoSent
		changed = wasLocal || s.pendingUndo != nil
		s.pendingUndo = nil
		s.undoSent = false
		if wasLocal {
			notices = append(notices, Notice{Kind: "undo-rejected"})
		}

	case *carodto.SessionStarted:
		if s.sess != nil {
			s.sess.Status = StatusPlaying
			s.sess.Turn = Seat(ev.Turn)
			s.sess.Winner = WinnerNone
			changed = true
		}

	case *carodto.SessionFinished:
		if s.sess == nil {
			break
		}
		changed = true
		s.sess.Status = StatusFinished
		s.sess.Winner = Winner(ev.Winner)
		s.sess.Score = ev.Score
		if ev.Board != nil {
			s.sess.Board = Board(ev.Board).Clone()
		}
		s.sess.WinningLine = nil
		for _, c := range ev.WinningLine {
			s.sess.WinningLine = append(s.sess.WinningLine, Coord{Row: c.Row, Col: c.Col})
		}
		s.pendingUndo = nil
		s.undoSent = false
		s.scheduleArchiveLocked()
		notices = append(notices, Notice{Kind: "session-finished"})

	case *carodto.SessionReset:
		changed = true
		if s.sess != nil {
			s.sess.Board = Board(ev.Board).Clone()
			if st, ok := parseStatus(ev.Status); ok {
				s.sess.Status = st
			}
			s.sess.Turn = Seat(ev.Turn)
			s.sess.Winner = WinnerNone
			s.sess.LastMove = nil
			s.sess.WinningLine = nil
			s.sess.MoveCount = 0
		}
		s.pendingUndo = nil
		s.undoSent = false

	case *carodto.SessionError:
		notices = append(notices, Notice{Kind: "session-error", Text: ev.Message})

	case *carodto.MarkerUpdated:
		if s.sess != nil {
			s.sess.Markers[ev.Seat-1] = ev.Marker
			changed = true
		}

	case *carodto.GuestRenamed:
		// rename updates the display name only, never the identity kind
		changed = true
		for i := range s.roster {
			if s.roster[i].Seat == Seat(ev.Seat) {
				s.roster[i].Name = ev.Name
			}
		}
		if s.id.IsGuest() && s.seat.Valid() && Seat(ev.Seat) == s.seat && ev.Identity == s.id.Value {
			s.id.Name = ev.Name
		}

	case *carodto.ReactionReceived:
		reaction = &reactionInfo{seat: Seat(ev.FromSeat), emoji: ev.Emoji, name: ev.FromName}
	}
	s.mu.Unlock()

	for _, n := range notices {
		s.notify(n)
	}
	if reaction != nil && s.onReaction != nil {
		s.onReaction(reaction.seat, reaction.emoji, reaction.name)
	}
	if changed {
		s.notifyChange()
	}
}

func (s *Store) upsertSlotLocked(slot PlayerSlot) {
	for i := range s.roster {
		if s.roster[i].Seat == slot.Seat {
			s.roster[i] = slot
			return
		}
	}
	s.roster = append(s.roster, slot)
}

func (s *Store) removeSlotLocked(ident string, seat Seat) {
	out := s.roster[:0]
	for _, p := range s.roster {
		if ident != "" && p.ID == ident {
			continue
		}
		if ident == "" && seat.Valid() && p.Seat == seat {
			continue
		}
		out = append(out, p)
	}
	s.roster = out
}

// patchOccupantsFromRosterLocked mirrors the roster into the raw seat
// occupant fields so the resolver fallback stays coherent after partial
// patches.
func (s *Store) patchOccupantsFromRosterLocked() {
	for _, p := range s.roster {
		switch p.Seat {
		case Seat1:
			s.sess.Occupants.Seat1ID = p.ID
			s.sess.Occupants.Seat1Guest = p.Guest
		case Seat2:
			s.sess.Occupants.Seat2ID = p.ID
			s.sess.Occupants.Seat2Guest = p.Guest
		}
	}
}

// scheduleArchiveLocked captures the final board/score/winner at the moment
// the session finishes, then arms the grace timer. Archival reads only the
// captured snapshot: state may have moved on by the time it fires.
func (s *Store) scheduleArchiveLocked() {
	if s.sess == nil {
		return
	}
	snap := FinalSnapshot{
		RoomID:    s.roomID,
		Code:      s.sess.Code,
		Seat:      s.seat,
		Board:     s.sess.Board.Clone(),
		Score:     s.sess.Score,
		Winner:    s.sess.Winner,
		MoveCount: s.sess.MoveCount,
		At:        time.Now(),
	}
	epoch := s.epoch
	if s.finishTimer != nil {
		s.finishTimer.Stop()
	}
	s.finishTimer = time.AfterFunc(s.cfg.FinishGrace, func() {
		s.archiveResult(epoch, snap)
	})
}

func (s *Store) archiveResult(epoch uint64, snap FinalSnapshot) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	id := s.id
	s.mu.Unlock()

	rec := &carodto.ResultRecord{
		RoomID:     snap.RoomID,
		Code:       snap.Code,
		Seat:       int(snap.Seat),
		Winner:     int(snap.Winner),
		Score:      snap.Score,
		MoveCount:  snap.MoveCount,
		FinishedAt: snap.At,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if id.IsGuest() {
		if s.archiver == nil {
			return
		}
		if err := s.archiver.PushResult(ctx, id.Value, rec); err != nil {
			s.log.Warn("result_archive_failed", zap.String("room_id", rec.RoomID), zap.Error(err))
		}
		return
	}
	if s.submitter == nil {
		return
	}
	if err := s.submitter.SubmitResult(ctx, rec); err != nil {
		s.log.Warn("result_submit_failed", zap.String("room_id", rec.RoomID), zap.Error(err))
	}
}
