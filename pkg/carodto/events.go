package carodto

// Inbound push event names.
const (
	EvRosterJoined     = "roster-joined"
	EvSeatFilled       = "seat-filled"
	EvSeatVacated      = "seat-vacated"
	EvRoomDeleted      = "room-deleted"
	EvMoveApplied      = "move-applied"
	EvMoveRejected     = "move-rejected"
	EvScoreUpdated     = "score-updated"
	EvUndoRequested    = "undo-requested"
	EvUndoApproved     = "undo-approved"
	EvUndoRejected     = "undo-rejected"
	EvSessionStarted   = "session-started"
	EvSessionFinished  = "session-finished"
	EvSessionReset     = "session-reset"
	EvSessionError     = "session-error"
	EvMarkerUpdated    = "marker-updated"
	EvGuestRenamed     = "guest-renamed"
	EvReactionReceived = "reaction-received"
)

// Outbound emission names.
const (
	EmJoinRoom       = "join-room"
	EmSubmitMove     = "submit-move"
	EmRequestUndo    = "request-undo"
	EmApproveUndo    = "approve-undo"
	EmRejectUndo     = "reject-undo"
	EmConcede        = "concede"
	EmBeginSession   = "begin-session"
	EmRestartSession = "restart-session"
	EmLeaveRoom      = "leave-room"
	EmRenameGuest    = "rename-guest"
	EmSendReaction   = "send-reaction"
)

type RosterJoined struct {
	RoomID string       `json:"roomId"`
	Roster []PlayerSlot `json:"roster"`
	Status string       `json:"status,omitempty"`
	Turn   int          `json:"turn,omitempty"`
}

type SeatFilled struct {
	Slot PlayerSlot `json:"slot"`
}

// SeatVacated is the loosest payload the server sends: depending on how the
// seat emptied it may carry the departing identity, the seat number, a host
// transfer marker, a reset marker, or a partial session document.
type SeatVacated struct {
	Identity        string        `json:"identity,omitempty"`
	Seat            int           `json:"seat,omitempty"`
	RoomID          string        `json:"roomId,omitempty"`
	HostTransferred bool          `json:"hostTransferred,omitempty"`
	SessionReset    bool          `json:"sessionReset,omitempty"`
	Session         *SessionState `json:"session,omitempty"`
}

type RoomDeleted struct {
	RoomID string `json:"roomId"`
}

type MoveApplied struct {
	Move  Move    `json:"move"`
	Board [][]int `json:"board"`
	Turn  int     `json:"turn"`
}

type MoveRejected struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type ScoreUpdated struct {
	Score [2]int `json:"score"`
}

type UndoRequested struct {
	MoveNumber  int `json:"moveNumber"`
	RequestedBy int `json:"requestedBy"`
}

type UndoApproved struct {
	MoveNumber int     `json:"moveNumber"`
	Board      [][]int `json:"board"`
}

type UndoRejected struct{}

type SessionStarted struct {
	Turn int `json:"turn"`
}

// SessionFinished carries the terminal outcome. Winner is 1/2 for a seat
// or -1 for a draw.
type SessionFinished struct {
	Winner      int     `json:"winner"`
	Score       [2]int  `json:"score"`
	Board       [][]int `json:"board,omitempty"`
	WinningLine []Coord `json:"winningLine,omitempty"`
}

type SessionReset struct {
	Board  [][]int `json:"board"`
	Turn   int     `json:"turn"`
	Status string  `json:"status"`
	Winner *int    `json:"winner"`
}

type SessionError struct {
	Message string `json:"message"`
}

type MarkerUpdated struct {
	Seat   int    `json:"seat"`
	Marker string `json:"marker"`
}

type GuestRenamed struct {
	Seat     int    `json:"seat"`
	Name     string `json:"name"`
	Identity string `json:"identity"`
}

type ReactionReceived struct {
	FromSeat int    `json:"fromSeat"`
	Emoji    string `json:"emoji"`
	FromName string `json:"fromName"`
}
