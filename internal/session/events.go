package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/haanhng/caro-client-go/internal/pushio"
	"github.com/haanhng/caro-client-go/pkg/carodto"
)

// errIgnored marks events that are syntactically fine but not for us
// (unknown tag). Malformed payloads get a descriptive error instead.
var errIgnored = errors.New("event ignored")

// decodeEvent validates one inbound envelope and returns a typed payload.
// Any shape or range failure yields an error and the event must be a no-op:
// partially-shaped events are never applied.
func decodeEvent(msg *pushio.Message) (any, error) {
	if msg == nil || msg.Event == "" {
		return nil, errors.New("empty envelope")
	}
	switch msg.Event {
	case carodto.EvRosterJoined:
		var ev carodto.RosterJoined
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if ev.RoomID == "" {
			return nil, errors.New("roster-joined: missing roomId")
		}
		for _, sl := range ev.Roster {
			if !validSeatNum(sl.Seat) {
				return nil, fmt.Errorf("roster-joined: seat %d out of range", sl.Seat)
			}
			if sl.ID == "" {
				return nil, errors.New("roster-joined: slot missing identity")
			}
		}
		if ev.Status != "" {
			if _, ok := parseStatus(ev.Status); !ok {
				return nil, fmt.Errorf("roster-joined: bad status %q", ev.Status)
			}
		}
		if ev.Turn != 0 && !validSeatNum(ev.Turn) {
			return nil, fmt.Errorf("roster-joined: turn %d out of range", ev.Turn)
		}
		return &ev, nil

	case carodto.EvSeatFilled:
		var ev carodto.SeatFilled
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if !validSeatNum(ev.Slot.Seat) || ev.Slot.ID == "" {
			return nil, errors.New("seat-filled: invalid slot")
		}
		return &ev, nil

	case carodto.EvSeatVacated:
		var ev carodto.SeatVacated
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		// all fields optional, but a present seat must be in range
		if ev.Seat != 0 && !validSeatNum(ev.Seat) {
			return nil, fmt.Errorf("seat-vacated: seat %d out of range", ev.Seat)
		}
		if ev.Identity == "" && ev.Seat == 0 && ev.Session == nil && !ev.SessionReset {
			return nil, errors.New("seat-vacated: empty payload")
		}
		return &ev, nil

	case carodto.EvRoomDeleted:
		var ev carodto.RoomDeleted
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if ev.RoomID == "" {
			return nil, errors.New("room-deleted: missing roomId")
		}
		return &ev, nil

	case carodto.EvMoveApplied:
		var ev carodto.MoveApplied
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if !validBoard(ev.Board) {
			return nil, errors.New("move-applied: invalid board")
		}
		if !validSeatNum(ev.Turn) {
			return nil, fmt.Errorf("move-applied: turn %d out of range", ev.Turn)
		}
		if !validSeatNum(ev.Move.Seat) {
			return nil, fmt.Errorf("move-applied: move seat %d out of range", ev.Move.Seat)
		}
		if ev.Move.Row < 0 || ev.Move.Row >= len(ev.Board) || ev.Move.Col < 0 || ev.Move.Col >= len(ev.Board[0]) {
			return nil, errors.New("move-applied: move out of bounds")
		}
		return &ev, nil

	case carodto.EvMoveRejected:
		var ev carodto.MoveRejected
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if ev.Valid {
			return nil, errors.New("move-rejected: unexpected valid flag")
		}
		return &ev, nil

	case carodto.EvScoreUpdated:
		var ev carodto.ScoreUpdated
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if ev.Score[0] < 0 || ev.Score[1] < 0 {
			return nil, errors.New("score-updated: negative score")
		}
		return &ev, nil

	case carodto.EvUndoRequested:
		var ev carodto.UndoRequested
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if !validSeatNum(ev.RequestedBy) || ev.MoveNumber < 0 {
			return nil, errors.New("undo-requested: invalid payload")
		}
		return &ev, nil

	case carodto.EvUndoApproved:
		var ev carodto.UndoApproved
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if !validBoard(ev.Board) || ev.MoveNumber < 0 {
			return nil, errors.New("undo-approved: invalid payload")
		}
		return &ev, nil

	case carodto.EvUndoRejected:
		return &carodto.UndoRejected{}, nil

	case carodto.EvSessionStarted:
		var ev carodto.SessionStarted
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if !validSeatNum(ev.Turn) {
			return nil, fmt.Errorf("session-started: turn %d out of range", ev.Turn)
		}
		return &ev, nil

	case carodto.EvSessionFinished:
		var ev carodto.SessionFinished
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if !validWinner(ev.Winner) || ev.Winner == int(WinnerNone) {
			return nil, fmt.Errorf("session-finished: winner %d out of range", ev.Winner)
		}
		if ev.Board != nil && !validBoard(ev.Board) {
			return nil, errors.New("session-finished: invalid board")
		}
		return &ev, nil

	case carodto.EvSessionReset:
		var ev carodto.SessionReset
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if !validBoard(ev.Board) {
			return nil, errors.New("session-reset: invalid board")
		}
		if _, ok := parseStatus(ev.Status); !ok {
			return nil, fmt.Errorf("session-reset: bad status %q", ev.Status)
		}
		if ev.Turn != 0 && !validSeatNum(ev.Turn) {
			return nil, fmt.Errorf("session-reset: turn %d out of range", ev.Turn)
		}
		if ev.Winner != nil {
			return nil, errors.New("session-reset: winner must be null")
		}
		return &ev, nil

	case carodto.EvSessionError:
		var ev carodto.SessionError
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if ev.Message == "" {
			return nil, errors.New("session-error: missing message")
		}
		return &ev, nil

	case carodto.EvMarkerUpdated:
		var ev carodto.MarkerUpdated
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if !validSeatNum(ev.Seat) || ev.Marker == "" {
			return nil, errors.New("marker-updated: invalid payload")
		}
		return &ev, nil

	case carodto.EvGuestRenamed:
		var ev carodto.GuestRenamed
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if !validSeatNum(ev.Seat) || ev.Name == "" {
			return nil, errors.New("guest-renamed: invalid payload")
		}
		return &ev, nil

	case carodto.EvReactionReceived:
		var ev carodto.ReactionReceived
		if err := unmarshalStrict(msg.Data, &ev); err != nil {
			return nil, err
		}
		if !validSeatNum(ev.FromSeat) || ev.Emoji == "" {
			return nil, errors.New("reaction-received: invalid payload")
		}
		return &ev, nil
	}

	return nil, errIgnored
}

func unmarshalStrict(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func validSeatNum(n int) bool { return n == 1 || n == 2 }

// validBoard accepts a rectangular, non-empty matrix whose cells are all
// in 0..2.
func validBoard(b [][]int) bool {
	if len(b) == 0 {
		return false
	}
	cols := len(b[0])
	if cols == 0 {
		return false
	}
	for _, row := range b {
		if len(row) != cols {
			return false
		}
		for _, c := range row {
			if c < 0 || c > 2 {
				return false
			}
		}
	}
	return true
}
