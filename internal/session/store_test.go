package session

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/haanhng/caro-client-go/internal/identity"
	"github.com/haanhng/caro-client-go/internal/pushio"
	"github.com/haanhng/caro-client-go/pkg/carodto"
)

type emitted struct {
	event   string
	payload any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (f *fakeEmitter) Emit(_ context.Context, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{event: event, payload: payload})
	return nil
}

func (f *fakeEmitter) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func (f *fakeEmitter) last(event string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].event == event {
			return f.events[i].payload
		}
	}
	return nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	snap  *carodto.SessionState
	err   error
	delay time.Duration
}

func (f *fakeFetcher) FetchSession(_ context.Context, _ string) (*carodto.SessionState, error) {
	f.mu.Lock()
	f.calls++
	snap, err, delay := f.snap, f.err, f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) set(snap *carodto.SessionState, err error) {
	f.mu.Lock()
	f.snap, f.err = snap, err
	f.mu.Unlock()
}

type fakeArchiver struct {
	mu   sync.Mutex
	recs []*carodto.ResultRecord
}

func (f *fakeArchiver) PushResult(_ context.Context, _ string, rec *carodto.ResultRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func localGuest() identity.Identity {
	return identity.Identity{Kind: identity.KindGuest, Value: "g-token-2", Name: "Bea"}
}

func testSnapshot() *carodto.SessionState {
	board := make([][]int, 5)
	for i := range board {
		board[i] = make([]int, 5)
	}
	return &carodto.SessionState{
		ID:     "room1",
		Code:   "AB12",
		Rows:   5,
		Cols:   5,
		Board:  board,
		Rules:  &carodto.Rules{BlockTwoEnds: true, AllowUndo: true, MaxUndo: 3},
		Status: "waiting",
		Players: []carodto.PlayerSlot{
			{ID: "acct-1", Name: "Ann", IsGuest: false, Seat: 1},
			{ID: "g-token-2", Name: "Bea", IsGuest: true, Seat: 2},
		},
		Player1ID:    "acct-1",
		Player2ID:    "g-token-2",
		Player2Guest: true,
	}
}

func newTestStore(t *testing.T) (*Store, *fakeEmitter, *fakeFetcher) {
	t.Helper()
	em := &fakeEmitter{}
	fe := &fakeFetcher{}
	s := NewStore(nil, em, fe, localGuest(), Config{
		DebounceWindow: 5 * time.Millisecond,
		FinishGrace:    25 * time.Millisecond,
	})
	t.Cleanup(s.Close)
	return s, em, fe
}

func seedSession(t *testing.T, s *Store, fe *fakeFetcher) {
	t.Helper()
	fe.set(testSnapshot(), nil)
	if err := s.JoinSession(context.Background(), "room1"); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	waitFor(t, func() bool { return s.RosterView().Session != nil })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func push(s *Store, event, data string) {
	msg := &pushio.Message{Event: event}
	if data != "" {
		msg.Data = json.RawMessage(data)
	}
	s.HandleMessage(msg)
}

func TestJoinResolvesSeatFromSnapshot(t *testing.T) {
	s, em, fe := newTestStore(t)
	seedSession(t, s, fe)

	rv := s.RosterView()
	if rv.Seat != Seat2 {
		t.Fatalf("expected resolved seat 2, got %d", rv.Seat)
	}
	if len(rv.Roster) != 2 || rv.Session.Code != "AB12" {
		t.Fatalf("unexpected view: %+v", rv)
	}
	join, ok := em.last(carodto.EmJoinRoom).(*carodto.JoinRoom)
	if !ok || join.RoomID != "room1" || join.Identity != "g-token-2" || !join.IsGuest {
		t.Fatalf("unexpected join-room payload: %+v", join)
	}
}

func TestMalformedEventsAreNoOps(t *testing.T) {
	s, _, fe := newTestStore(t)
	seedSession(t, s, fe)
	time.Sleep(20 * time.Millisecond) // let the join reconcile settle

	before := s.RosterView()
	beforePlay := s.PlayView()

	malformed := []struct{ event, data string }{
		{carodto.EvMoveApplied, `{"move":{"row":0,"col":0,"seat":3},"board":[[0]],"turn":1}`},
		{carodto.EvMoveApplied, `{"move":{"row":9,"col":9,"seat":1},"board":[[0,0],[0,0]],"turn":1}`},
		{carodto.EvMoveApplied, `{"move":"oops","board":[[0]],"turn":1}`},
		{carodto.EvMoveApplied, `{"move":{"row":0,"col":0,"seat":1},"board":[[0,7]],"turn":1}`},
		{carodto.EvSeatFilled, `{"slot":{"id":"x","seat":5}}`},
		{carodto.EvSeatFilled, `{"slot":{"seat":1}}`},
		{carodto.EvUndoRequested, `{"moveNumber":-1,"requestedBy":1}`},
		{carodto.EvUndoRequested, `{"moveNumber":2,"requestedBy":0}`},
		{carodto.EvSessionStarted, `{"turn":9}`},
		{carodto.EvSessionReset, `{"board":[[0]],"turn":1,"status":"bogus","winner":null}`},
		{carodto.EvSessionReset, `{"board":[[0]],"turn":1,"status":"waiting","winner":2}`},
		{carodto.EvMarkerUpdated, `{"seat":0,"marker":"x"}`},
		{carodto.EvGuestRenamed, `{"seat":2,"name":""}`},
		{carodto.EvRoomDeleted, `{}`},
		{"totally-unknown-event", `{"whatever":true}`},
	}
	for _, m := range malformed {
		push(s, m.event, m.data)
	}
	time.Sleep(20 * time.Millisecond)

	if !reflect.DeepEqual(before, s.RosterView()) {
		t.Fatalf("roster surface changed by malformed events")
	}
	if !reflect.DeepEqual(beforePlay, s.PlayView()) {
		t.Fatalf("play surface changed by malformed events")
	}
}

func TestSubmitMoveDoesNotTouchBoard(t *testing.T) {
	s, em, fe := newTestStore(t)
	seedSession(t, s, fe)

	if err := s.SubmitMove(context.Background(), 2, 2); err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	rv := s.RosterView()
	for _, row := range rv.Session.Board {
		for _, c := range row {
			if c != 0 {
				t.Fatalf("board speculatively mutated: %v", rv.Session.Board)
			}
		}
	}
	if em.count(carodto.EmSubmitMove) != 1 {
		t.Fatalf("expected one submit-move emission")
	}

	// the authoritative echo performs the mutation
	push(s, carodto.EvMoveApplied, `{"move":{"row":2,"col":2,"seat":2,"number":1},"board":[[0,0,0,0,0],[0,0,0,0,0],[0,0,2,0,0],[0,0,0,0,0],[0,0,0,0,0]],"turn":1}`)
	rv = s.RosterView()
	if rv.Session.Board[2][2] != 2 {
		t.Fatalf("move-applied not folded in")
	}
	pv := s.PlayView()
	if pv.LastMove == nil || pv.LastMove.Row != 2 || pv.LastMove.Col != 2 || pv.MoveCount != 1 {
		t.Fatalf("unexpected play view: %+v", pv)
	}
}

func TestRosterBurstDebouncesToOneFetch(t *testing.T) {
	s, _, fe := newTestStore(t)
	seedSession(t, s, fe)
	time.Sleep(20 * time.Millisecond)
	base := fe.callCount()

	push(s, carodto.EvSeatFilled, `{"slot":{"id":"acct-9","name":"Cam","seat":1}}`)
	push(s, carodto.EvSeatVacated, `{"identity":"acct-9","seat":1}`)
	push(s, carodto.EvSeatFilled, `{"slot":{"id":"acct-1","name":"Ann","seat":1}}`)

	time.Sleep(60 * time.Millisecond)
	if got := fe.callCount() - base; got != 1 {
		t.Fatalf("expected exactly 1 debounced fetch, got %d", got)
	}
}

func TestRosterEventDuringFetchSchedulesAnotherPass(t *testing.T) {
	s, _, fe := newTestStore(t)
	seedSession(t, s, fe)
	time.Sleep(20 * time.Millisecond)

	fe.mu.Lock()
	fe.delay = 40 * time.Millisecond
	fe.mu.Unlock()
	base := fe.callCount()

	push(s, carodto.EvSeatFilled, `{"slot":{"id":"acct-9","name":"Cam","seat":1}}`)
	waitFor(t, func() bool { return fe.callCount() > base })
	// this lands while the first fetch is in flight; its snapshot predates
	// the event, so a second fetch must follow
	push(s, carodto.EvSeatVacated, `{"identity":"acct-9","seat":1}`)

	waitFor(t, func() bool { return fe.callCount()-base == 2 })

	// no further events, no further fetches
	time.Sleep(100 * time.Millisecond)
	if got := fe.callCount() - base; got != 2 {
		t.Fatalf("expected fetches to settle at 2, got %d", got)
	}
}

func TestCrossRoomEventsDoNotSignalChange(t *testing.T) {
	s, _, fe := newTestStore(t)
	seedSession(t, s, fe)
	time.Sleep(20 * time.Millisecond) // let the join reconcile settle

	var mu sync.Mutex
	changes := 0
	s.OnChange(func() {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	push(s, carodto.EvRosterJoined, `{"roomId":"other","roster":[],"status":"waiting"}`)
	push(s, carodto.EvRoomDeleted, `{"roomId":"other"}`)
	push(s, carodto.EvSeatVacated, `{"roomId":"other","identity":"x","seat":1}`)
	mu.Lock()
	got := changes
	mu.Unlock()
	if got != 0 {
		t.Fatalf("cross-room no-ops signalled %d changes", got)
	}

	push(s, carodto.EvScoreUpdated, `{"score":[1,0]}`)
	mu.Lock()
	got = changes
	mu.Unlock()
	if got != 1 {
		t.Fatalf("expected one change signal after a real mutation, got %d", got)
	}
}

func TestUndoRoundTrip(t *testing.T) {
	s, em, fe := newTestStore(t)
	seedSession(t, s, fe)

	// opponent (seat 1) asks to roll back to move 5
	push(s, carodto.EvUndoRequested, `{"moveNumber":5,"requestedBy":1}`)
	pv := s.PlayView()
	if pv.Pending == nil || !pv.AwaitingApproval || pv.Pending.MoveNumber != 5 {
		t.Fatalf("expected pending approval state, got %+v", pv)
	}

	if err := s.ApproveUndo(context.Background(), 5); err != nil {
		t.Fatalf("ApproveUndo: %v", err)
	}
	if em.count(carodto.EmApproveUndo) != 1 {
		t.Fatalf("expected approve-undo emission")
	}

	push(s, carodto.EvUndoApproved, `{"moveNumber":5,"board":[[1,0,0,0,0],[0,2,0,0,0],[0,0,0,0,0],[0,0,0,0,0],[0,0,0,0,0]]}`)
	rv := s.RosterView()
	if rv.Session.Board[0][0] != 1 || rv.Session.Board[1][1] != 2 {
		t.Fatalf("board not replaced by approval snapshot")
	}
	pv = s.PlayView()
	if pv.Pending != nil || pv.AwaitingApproval || pv.RequestOutstanding || pv.LastMove != nil {
		t.Fatalf("undo sub-state not cleared: %+v", pv)
	}
	if pv.MoveCount != 5 {
		t.Fatalf("expected move count 5, got %d", pv.MoveCount)
	}
}

func TestLocalUndoRequestFlag(t *testing.T) {
	s, _, fe := newTestStore(t)
	seedSession(t, s, fe)

	if err := s.RequestUndo(context.Background(), 3); err != nil {
		t.Fatalf("RequestUndo: %v", err)
	}
	if !s.PlayView().RequestOutstanding {
		t.Fatalf("outstanding flag not set")
	}
	if err := s.RequestUndo(context.Background(), 4); !errors.Is(err, ErrUndoOutstanding) {
		t.Fatalf("second request should be blocked, got %v", err)
	}

	boardBefore := s.RosterView().Session.Board
	push(s, carodto.EvUndoRejected, "")
	pv := s.PlayView()
	if pv.RequestOutstanding || pv.Pending != nil {
		t.Fatalf("rejection should clear the flag: %+v", pv)
	}
	if !reflect.DeepEqual(boardBefore, s.RosterView().Session.Board) {
		t.Fatalf("rejection must leave the board untouched")
	}
}

func TestApproveOwnRequestBlocked(t *testing.T) {
	s, _, fe := newTestStore(t)
	seedSession(t, s, fe)

	// our own seat (2) raised the request; we may not decide it
	push(s, carodto.EvUndoRequested, `{"moveNumber":2,"requestedBy":2}`)
	if err := s.ApproveUndo(context.Background(), 2); !errors.Is(err, ErrOwnUndoRequest) {
		t.Fatalf("expected ErrOwnUndoRequest, got %v", err)
	}
	if err := s.RejectUndo(context.Background()); !errors.Is(err, ErrOwnUndoRequest) {
		t.Fatalf("expected ErrOwnUndoRequest, got %v", err)
	}
}

func TestSessionResetIdempotent(t *testing.T) {
	s, _, fe := newTestStore(t)
	seedSession(t, s, fe)

	reset := `{"board":[[0,0,0,0,0],[0,0,0,0,0],[0,0,0,0,0],[0,0,0,0,0],[0,0,0,0,0]],"turn":1,"status":"playing","winner":null}`
	push(s, carodto.EvSessionReset, reset)
	once := s.RosterView()
	oncePlay := s.PlayView()

	push(s, carodto.EvSessionReset, reset)
	if !reflect.DeepEqual(once, s.RosterView()) || !reflect.DeepEqual(oncePlay, s.PlayView()) {
		t.Fatalf("session-reset is not idempotent")
	}
}

func TestRoomDeletedTeardown(t *testing.T) {
	s, _, fe := newTestStore(t)
	seedSession(t, s, fe)

	push(s, carodto.EvRoomDeleted, `{"roomId":"other-room"}`)
	if s.RosterView().Session == nil {
		t.Fatalf("non-matching room-deleted must not tear down")
	}

	push(s, carodto.EvRoomDeleted, `{"roomId":"room1"}`)
	rv := s.RosterView()
	if rv.Session != nil || len(rv.Roster) != 0 || rv.Seat != SeatNone || s.RoomID() != "" {
		t.Fatalf("expected empty state after room-deleted, got %+v", rv)
	}
}

func TestRenameGuestPatchesNameOnly(t *testing.T) {
	s, em, fe := newTestStore(t)
	seedSession(t, s, fe)
	before := s.RosterView()

	if err := s.RenameGuest(context.Background(), "Alex"); err != nil {
		t.Fatalf("RenameGuest: %v", err)
	}
	rv := s.RosterView()
	for _, p := range rv.Roster {
		if p.Seat == Seat2 {
			if p.Name != "Alex" {
				t.Fatalf("expected immediate local rename, got %q", p.Name)
			}
			if !p.Guest || p.ID != "g-token-2" {
				t.Fatalf("rename must never touch identity: %+v", p)
			}
		}
		if p.Seat == Seat1 && p.Name != "Ann" {
			t.Fatalf("opponent slot changed: %+v", p)
		}
	}
	if !reflect.DeepEqual(before.Session, rv.Session) {
		t.Fatalf("session document changed by rename")
	}
	req, ok := em.last(carodto.EmRenameGuest).(*carodto.RenameGuest)
	if !ok || req.RoomID != "room1" || req.Name != "Alex" {
		t.Fatalf("unexpected rename-guest emission: %+v", req)
	}
}

func TestGuestRenamedEventKeepsKind(t *testing.T) {
	s, _, fe := newTestStore(t)
	seedSession(t, s, fe)

	push(s, carodto.EvGuestRenamed, `{"seat":2,"name":"Zed","identity":"g-token-2"}`)
	for _, p := range s.RosterView().Roster {
		if p.Seat == Seat2 && (p.Name != "Zed" || !p.Guest) {
			t.Fatalf("rename event mishandled: %+v", p)
		}
	}
}

func TestReconnectAnnouncesExactlyOnce(t *testing.T) {
	s, em, fe := newTestStore(t)
	seedSession(t, s, fe)
	base := em.count(carodto.EmJoinRoom)

	s.HandleTransportState(pushio.WSStateDisconnected)
	s.HandleTransportState(pushio.WSStateReconnecting)
	s.HandleTransportState(pushio.WSStateConnected)

	if got := em.count(carodto.EmJoinRoom) - base; got != 1 {
		t.Fatalf("expected exactly 1 rejoin announcement, got %d", got)
	}
	join := em.last(carodto.EmJoinRoom).(*carodto.JoinRoom)
	if join.Identity != "g-token-2" || !join.IsGuest || join.RoomID != "room1" {
		t.Fatalf("rejoin must carry the resolved identity: %+v", join)
	}
}

func TestReconnectWithoutRoomStaysSilent(t *testing.T) {
	s, em, _ := newTestStore(t)
	s.HandleTransportState(pushio.WSStateConnected)
	if em.count(carodto.EmJoinRoom) != 0 {
		t.Fatalf("no room held, no announcement expected")
	}
}

func TestBeginSessionOptimisticOnce(t *testing.T) {
	s, em, fe := newTestStore(t)
	seedSession(t, s, fe)

	if err := s.BeginSession(context.Background()); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	if got := s.PlayView().Status; got != StatusPlaying {
		t.Fatalf("expected optimistic flip to playing, got %s", got)
	}
	// already non-waiting: no-op, no second emission
	if err := s.BeginSession(context.Background()); err != nil {
		t.Fatalf("BeginSession repeat: %v", err)
	}
	if em.count(carodto.EmBeginSession) != 1 {
		t.Fatalf("expected a single begin-session emission")
	}

	// authoritative event always overwrites the guess
	push(s, carodto.EvSessionStarted, `{"turn":2}`)
	pv := s.PlayView()
	if pv.Status != StatusPlaying || pv.Turn != Seat2 || !pv.LocalTurn {
		t.Fatalf("session-started not applied: %+v", pv)
	}
}

func TestReconcileNotFoundTearsDown(t *testing.T) {
	s, _, fe := newTestStore(t)
	seedSession(t, s, fe)

	fe.set(nil, pushio.ErrNotFound)
	push(s, carodto.EvSeatVacated, `{"identity":"acct-1","seat":1}`)
	waitFor(t, func() bool { return s.RosterView().Session == nil && s.RoomID() == "" })
}

func TestReconcileTransientFailureKeepsState(t *testing.T) {
	s, _, fe := newTestStore(t)
	seedSession(t, s, fe)
	time.Sleep(20 * time.Millisecond)

	before := s.RosterView()
	base := fe.callCount()
	fe.set(nil, errors.New("boom"))
	push(s, carodto.EvSeatVacated, `{"identity":"acct-1","seat":1}`)
	waitFor(t, func() bool { return fe.callCount() > base })
	time.Sleep(20 * time.Millisecond)

	rv := s.RosterView()
	if rv.Session == nil || !reflect.DeepEqual(before.Session, rv.Session) {
		t.Fatalf("transient failure must leave the session document untouched")
	}
}

func TestStaleFetchDiscardedAfterLeave(t *testing.T) {
	s, _, fe := newTestStore(t)
	seedSession(t, s, fe)

	fe.mu.Lock()
	fe.delay = 30 * time.Millisecond
	fe.mu.Unlock()
	push(s, carodto.EvSeatFilled, `{"slot":{"id":"acct-9","name":"Cam","seat":1}}`)
	time.Sleep(10 * time.Millisecond) // debounce fired, fetch in flight

	if err := s.LeaveSession(context.Background()); err != nil {
		t.Fatalf("LeaveSession: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if s.RosterView().Session != nil || s.RoomID() != "" {
		t.Fatalf("stale fetch result applied after teardown")
	}
}

func TestFinishArchivesCapturedSnapshot(t *testing.T) {
	s, _, fe := newTestStore(t)
	ar := &fakeArchiver{}
	s.AttachArchiver(ar)
	seedSession(t, s, fe)

	push(s, carodto.EvSessionFinished, `{"winner":2,"score":[0,1],"winningLine":[{"row":0,"col":0},{"row":1,"col":1}]}`)
	if got := s.RosterView().Session.Status; got != StatusFinished {
		t.Fatalf("expected finished status, got %s", got)
	}

	// state moves on before the grace timer fires; archival must use the
	// captured snapshot
	push(s, carodto.EvSessionReset, `{"board":[[0,0,0,0,0],[0,0,0,0,0],[0,0,0,0,0],[0,0,0,0,0],[0,0,0,0,0]],"turn":1,"status":"waiting","winner":null}`)

	waitFor(t, func() bool {
		ar.mu.Lock()
		defer ar.mu.Unlock()
		return len(ar.recs) == 1
	})
	ar.mu.Lock()
	rec := ar.recs[0]
	ar.mu.Unlock()
	if rec.Winner != 2 || rec.Score != [2]int{0, 1} || rec.RoomID != "room1" || rec.Seat != 2 {
		t.Fatalf("unexpected archived record: %+v", rec)
	}
}

func TestTeardownCancelsGraceTimer(t *testing.T) {
	s, _, fe := newTestStore(t)
	ar := &fakeArchiver{}
	s.AttachArchiver(ar)
	seedSession(t, s, fe)

	push(s, carodto.EvSessionFinished, `{"winner":1,"score":[1,0]}`)
	if err := s.LeaveSession(context.Background()); err != nil {
		t.Fatalf("LeaveSession: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	ar.mu.Lock()
	defer ar.mu.Unlock()
	if len(ar.recs) != 0 {
		t.Fatalf("archive fired after teardown")
	}
}
