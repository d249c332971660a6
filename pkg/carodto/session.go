package carodto

// PlayerSlot is one roster entry as the server sends it.
type PlayerSlot struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsGuest bool   `json:"isGuest"`
	Seat    int    `json:"seat"`
}

// Rules carries the active ruleset flags for a session.
type Rules struct {
	BlockTwoEnds bool `json:"blockTwoEnds"`
	AllowUndo    bool `json:"allowUndo"`
	MaxUndo      int  `json:"maxUndo"`
	TimeLimitSec int  `json:"timeLimit,omitempty"`
}

// Coord is a board coordinate (zero-based).
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Move is a single recorded move.
type Move struct {
	Row    int `json:"row"`
	Col    int `json:"col"`
	Seat   int `json:"seat"`
	Number int `json:"number"`
}

// SessionState is the full authoritative snapshot returned by the one-shot
// "fetch session by id" read and embedded in some push payloads.
// Winner is 0 while unset, 1 or 2 for a seat, -1 for a draw.
type SessionState struct {
	ID          string       `json:"id"`
	Code        string       `json:"code"`
	Rows        int          `json:"rows"`
	Cols        int          `json:"cols"`
	Board       [][]int      `json:"board"`
	Rules       *Rules       `json:"rules,omitempty"`
	Status      string       `json:"status"`
	Turn        int          `json:"turn,omitempty"`
	Winner      int          `json:"winner,omitempty"`
	Score       [2]int       `json:"score"`
	Markers     [2]string    `json:"markers"`
	LastMove    *Coord       `json:"lastMove,omitempty"`
	WinningLine []Coord      `json:"winningLine,omitempty"`
	MoveCount   int          `json:"moveCount"`
	Players     []PlayerSlot `json:"players,omitempty"`

	// Raw seat occupant fields, kept alongside the roster because the
	// server fills them before the roster array during join races.
	Player1ID    string `json:"player1Id,omitempty"`
	Player1Guest bool   `json:"player1Guest,omitempty"`
	Player2ID    string `json:"player2Id,omitempty"`
	Player2Guest bool   `json:"player2Guest,omitempty"`
}
