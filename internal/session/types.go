package session

import (
	"time"

	"github.com/haanhng/caro-client-go/internal/identity"
	"github.com/haanhng/caro-client-go/pkg/carodto"
)

// Seat identifies one of the two turn-taking positions.
type Seat int

const (
	SeatNone Seat = 0
	Seat1    Seat = 1
	Seat2    Seat = 2
)

func (s Seat) Valid() bool { return s == Seat1 || s == Seat2 }

func (s Seat) Opponent() Seat {
	switch s {
	case Seat1:
		return Seat2
	case Seat2:
		return Seat1
	}
	return SeatNone
}

// Winner is the finished-session outcome: a seat, WinnerDraw, or WinnerNone.
type Winner int

const (
	WinnerNone  Winner = 0
	WinnerSeat1 Winner = 1
	WinnerSeat2 Winner = 2
	WinnerDraw  Winner = -1
)

func validWinner(n int) bool {
	return n == int(WinnerNone) || n == int(WinnerSeat1) || n == int(WinnerSeat2) || n == int(WinnerDraw)
}

// Status is the session lifecycle state.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPlaying   Status = "playing"
	StatusFinished  Status = "finished"
	StatusAbandoned Status = "abandoned"
)

func parseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusWaiting, StatusPlaying, StatusFinished, StatusAbandoned:
		return Status(s), true
	}
	return "", false
}

// Board cells: 0 empty, 1 seat-1, 2 seat-2.
type Board [][]int

func (b Board) Clone() Board {
	if b == nil {
		return nil
	}
	out := make(Board, len(b))
	for i, row := range b {
		out[i] = make([]int, len(row))
		copy(out[i], row)
	}
	return out
}

// RuleSet is the active ruleset for a session.
type RuleSet struct {
	BlockTwoEnds bool
	AllowUndo    bool
	MaxUndo      int
	TimeLimitSec int
}

// PlayerSlot is one roster entry. Guest reflects how the occupant was
// registered server-side and is never rewritten by rename or reseat events.
type PlayerSlot struct {
	ID    string
	Name  string
	Guest bool
	Seat  Seat
}

type Coord struct {
	Row int
	Col int
}

// Session is the local mirror of the authoritative game instance. It is a
// disposable projection: reconciliation and rejoin rebuild it wholesale.
type Session struct {
	ID          string
	Code        string
	Rows        int
	Cols        int
	Board       Board
	Rules       RuleSet
	Status      Status
	Turn        Seat
	Winner      Winner
	Score       [2]int
	Markers     [2]string
	LastMove    *Coord
	WinningLine []Coord
	MoveCount   int

	// raw seat occupant fields, used by the resolver before the roster
	// projection is populated
	Occupants identity.SeatOccupants
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Board = s.Board.Clone()
	if s.LastMove != nil {
		lm := *s.LastMove
		out.LastMove = &lm
	}
	if s.WinningLine != nil {
		out.WinningLine = append([]Coord(nil), s.WinningLine...)
	}
	return &out
}

// UndoRequest is the ephemeral negotiation record. It exists from request
// until approve or reject resolves it.
type UndoRequest struct {
	RequestedBy Seat
	MoveNumber  int
}

// FinalSnapshot is captured at the moment a session finishes so the grace
// timer can archive it even after state has moved on.
type FinalSnapshot struct {
	RoomID    string
	Code      string
	Seat      Seat
	Board     Board
	Score     [2]int
	Winner    Winner
	MoveCount int
	At        time.Time
}

// RosterView is the rarely-changing read surface: session document, roster,
// and the resolved local seat.
type RosterView struct {
	Session *Session
	Roster  []PlayerSlot
	Seat    Seat
}

// PlayView is the frequently-changing read surface: turn indication, last
// move, and the undo sub-state.
type PlayView struct {
	Status    Status
	Turn      Seat
	LocalTurn bool
	LastMove  *Coord
	MoveCount int

	Pending            *UndoRequest
	AwaitingApproval   bool
	RequestOutstanding bool
}

func sessionFromSnapshot(snap *carodto.SessionState) *Session {
	sess := &Session{
		ID:        snap.ID,
		Code:      snap.Code,
		Rows:      snap.Rows,
		Cols:      snap.Cols,
		Board:     Board(snap.Board).Clone(),
		Status:    StatusWaiting,
		Score:     snap.Score,
		Markers:   snap.Markers,
		MoveCount: snap.MoveCount,
		Occupants: identity.SeatOccupants{
			Seat1ID:    snap.Player1ID,
			Seat1Guest: snap.Player1Guest,
			Seat2ID:    snap.Player2ID,
			Seat2Guest: snap.Player2Guest,
		},
	}
	if st, ok := parseStatus(snap.Status); ok {
		sess.Status = st
	}
	if Seat(snap.Turn).Valid() {
		sess.Turn = Seat(snap.Turn)
	}
	if validWinner(snap.Winner) {
		sess.Winner = Winner(snap.Winner)
	}
	if snap.Rules != nil {
		sess.Rules = RuleSet{
			BlockTwoEnds: snap.Rules.BlockTwoEnds,
			AllowUndo:    snap.Rules.AllowUndo,
			MaxUndo:      snap.Rules.MaxUndo,
			TimeLimitSec: snap.Rules.TimeLimitSec,
		}
	}
	if snap.LastMove != nil {
		sess.LastMove = &Coord{Row: snap.LastMove.Row, Col: snap.LastMove.Col}
	}
	for _, c := range snap.WinningLine {
		sess.WinningLine = append(sess.WinningLine, Coord{Row: c.Row, Col: c.Col})
	}
	return sess
}

func rosterFromSlots(slots []carodto.PlayerSlot) []PlayerSlot {
	out := make([]PlayerSlot, 0, len(slots))
	for _, sl := range slots {
		if !Seat(sl.Seat).Valid() {
			continue
		}
		out = append(out, PlayerSlot{ID: sl.ID, Name: sl.Name, Guest: sl.IsGuest, Seat: Seat(sl.Seat)})
	}
	return out
}

func rosterEntries(roster []PlayerSlot) []identity.RosterEntry {
	out := make([]identity.RosterEntry, 0, len(roster))
	for _, p := range roster {
		out = append(out, identity.RosterEntry{ID: p.ID, Guest: p.Guest, Seat: int(p.Seat)})
	}
	return out
}
