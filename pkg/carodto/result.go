package carodto

import "time"

// ResultRecord is the archived outcome of one finished session.
// Winner uses the SessionState encoding (1/2 seat, -1 draw).
type ResultRecord struct {
	RoomID     string    `json:"roomId"`
	Code       string    `json:"code"`
	Seat       int       `json:"seat"`
	Winner     int       `json:"winner"`
	Score      [2]int    `json:"score"`
	MoveCount  int       `json:"moveCount"`
	FinishedAt time.Time `json:"finishedAt"`
}
