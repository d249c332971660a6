package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/haanhng/caro-client-go/internal/identity"
	"github.com/haanhng/caro-client-go/internal/pushio"
	"github.com/haanhng/caro-client-go/pkg/carodto"
)

// Emitter sends one named event to the server over the push channel.
type Emitter interface {
	Emit(ctx context.Context, event string, payload any) error
}

// Fetcher is the one-shot "fetch session by id" collaborator.
type Fetcher interface {
	FetchSession(ctx context.Context, roomID string) (*carodto.SessionState, error)
}

// Archiver stores a finished result in the device-local ring.
type Archiver interface {
	PushResult(ctx context.Context, ident string, rec *carodto.ResultRecord) error
}

// Submitter reports a finished result server-side (account identities).
type Submitter interface {
	SubmitResult(ctx context.Context, rec *carodto.ResultRecord) error
}

// NameSaver persists the guest display name locally.
type NameSaver interface {
	SetGuestName(ctx context.Context, name string) error
}

// Notice is a user-visible message produced by the sync core. Kind is a
// stable key suitable for template lookup; Text carries server-provided
// detail when present.
type Notice struct {
	Kind string
	Text string
}

type Config struct {
	DebounceWindow time.Duration
	FinishGrace    time.Duration
}

func (c *Config) normalize() {
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 150 * time.Millisecond
	}
	if c.FinishGrace <= 0 {
		c.FinishGrace = 3 * time.Second
	}
}

// Store owns the local mirror of session, roster, and play state. All
// mutation funnels through its mutex; async continuations (debounce fetch,
// grace timer) revalidate the epoch before touching state, so work that
// outlives a teardown or room change is discarded.
type Store struct {
	mu  sync.Mutex
	log *zap.Logger
	cfg Config

	emitter Emitter
	fetcher Fetcher

	archiver  Archiver
	submitter Submitter
	names     NameSaver

	id identity.Identity

	// epoch is the liveness generation; bumped on every teardown.
	epoch uint64

	roomID string
	sess   *Session
	roster []PlayerSlot
	seat   Seat

	pendingUndo *UndoRequest
	undoSent    bool

	reconcilePending bool
	reconcileTimer   *time.Timer
	fetchInFlight    bool

	finishTimer *time.Timer

	lastWSState pushio.WebSocketState

	onNotice   func(Notice)
	onReaction func(fromSeat Seat, emoji, fromName string)
	onChange   func()
}

func NewStore(log *zap.Logger, emitter Emitter, fetcher Fetcher, id identity.Identity, cfg Config) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.normalize()
	return &Store{
		log:     log,
		cfg:     cfg,
		emitter: emitter,
		fetcher: fetcher,
		id:      id,
	}
}

// AttachArchiver wires the local recent-results ring.
func (s *Store) AttachArchiver(a Archiver) { s.archiver = a }

// AttachSubmitter wires the one-shot result submission client.
func (s *Store) AttachSubmitter(sub Submitter) { s.submitter = sub }

// AttachNameSaver wires guest display-name persistence.
func (s *Store) AttachNameSaver(n NameSaver) { s.names = n }

// OnNotice registers the user-visible notice callback. Invoked outside the
// store lock.
func (s *Store) OnNotice(cb func(Notice)) { s.onNotice = cb }

// OnReaction registers the peer-reaction callback. Invoked outside the lock.
func (s *Store) OnReaction(cb func(fromSeat Seat, emoji, fromName string)) { s.onReaction = cb }

// OnChange registers a coarse change signal for consumers that re-render.
func (s *Store) OnChange(cb func()) { s.onChange = cb }

// Identity returns the resolved local identity.
func (s *Store) Identity() identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// RoomID returns the currently held room id, empty when no session is active.
func (s *Store) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// RosterView returns the rarely-changing surface: a deep copy of the
// session document, the roster, and the resolved seat.
func (s *Store) RosterView() RosterView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RosterView{
		Session: s.sess.clone(),
		Roster:  append([]PlayerSlot(nil), s.roster...),
		Seat:    s.seat,
	}
}

// PlayView returns the frequently-changing surface. Consumers tracking
// turn indication should poll this instead of RosterView so roster churn
// does not cost them re-renders.
func (s *Store) PlayView() PlayView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := PlayView{
		RequestOutstanding: s.undoSent,
	}
	if s.sess != nil {
		v.Status = s.sess.Status
		v.Turn = s.sess.Turn
		v.LocalTurn = s.sess.Status == StatusPlaying && s.seat.Valid() && s.sess.Turn == s.seat
		v.MoveCount = s.sess.MoveCount
		if s.sess.LastMove != nil {
			lm := *s.sess.LastMove
			v.LastMove = &lm
		}
	}
	if s.pendingUndo != nil {
		p := *s.pendingUndo
		v.Pending = &p
		v.AwaitingApproval = s.seat.Valid() && p.RequestedBy != s.seat
	}
	return v
}

// HandleMessage folds one inbound push event into local state. Malformed
// events are logged and discarded; they never partially apply.
func (s *Store) HandleMessage(msg *pushio.Message) {
	ev, err := decodeEvent(msg)
	if err != nil {
		event := ""
		if msg != nil {
			event = msg.Event
		}
		if err == errIgnored {
			s.log.Debug("push_event_ignored", zap.String("event", event))
			return
		}
		s.log.Warn("push_event_malformed", zap.String("event", event), zap.Error(err))
		return
	}
	s.apply(ev)
}

// HandleTransportState is the reconnect coordinator: a disconnected→connected
// transition while a room id is held re-announces presence so the server
// re-registers the local identity. State re-sync then arrives through the
// normal event path.
func (s *Store) HandleTransportState(state pushio.WebSocketState) {
	s.mu.Lock()
	prev := s.lastWSState
	s.lastWSState = state
	var announce *carodto.JoinRoom
	if state == pushio.WSStateConnected && prev != pushio.WSStateConnected && s.roomID != "" {
		announce = &carodto.JoinRoom{RoomID: s.roomID, Identity: s.id.Value, IsGuest: s.id.IsGuest()}
	}
	s.mu.Unlock()

	if announce != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.emitter.Emit(ctx, carodto.EmJoinRoom, announce); err != nil {
			s.log.Warn("rejoin_announce_failed", zap.String("room_id", announce.RoomID), zap.Error(err))
		} else {
			s.log.Info("rejoin_announced", zap.String("room_id", announce.RoomID))
		}
	}
}

// Close cancels all pending timers and drops local state.
func (s *Store) Close() {
	s.mu.Lock()
	s.teardownLocked()
	s.mu.Unlock()
	s.notifyChange()
}

// teardownLocked resets to the empty/no-session state and invalidates every
// suspended continuation via the epoch bump.
func (s *Store) teardownLocked() {
	s.epoch++
	if s.reconcileTimer != nil {
		s.reconcileTimer.Stop()
		s.reconcileTimer = nil
	}
	if s.finishTimer != nil {
		s.finishTimer.Stop()
		s.finishTimer = nil
	}
	s.reconcilePending = false
	s.roomID = ""
	s.sess = nil
	s.roster = nil
	s.seat = SeatNone
	s.pendingUndo = nil
	s.undoSent = false
}

func (s *Store) resolveSeatLocked() {
	var occ identity.SeatOccupants
	if s.sess != nil {
		occ = s.sess.Occupants
	}
	s.seat = Seat(identity.ResolveSeat(occ, rosterEntries(s.roster), s.id))
}

func (s *Store) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *Store) notify(n Notice) {
	if s.onNotice != nil {
		s.onNotice(n)
	}
}
