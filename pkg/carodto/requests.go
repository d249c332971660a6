package carodto

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Identity string `json:"identity"`
	IsGuest  bool   `json:"isGuest"`
}

type SubmitMove struct {
	RoomID string `json:"roomId"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
}

type RequestUndo struct {
	RoomID     string `json:"roomId"`
	MoveNumber int    `json:"moveNumber"`
}

type ApproveUndo struct {
	RoomID     string `json:"roomId"`
	MoveNumber int    `json:"moveNumber"`
}

// RoomRef is the payload for emissions that only reference the room
// (reject-undo, concede, begin-session, restart-session, leave-room).
type RoomRef struct {
	RoomID string `json:"roomId"`
}

type RenameGuest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

type SendReaction struct {
	RoomID string `json:"roomId"`
	Emoji  string `json:"emoji"`
}
