package session

import (
	"encoding/json"
	"testing"

	"github.com/haanhng/caro-client-go/internal/pushio"
	"github.com/haanhng/caro-client-go/pkg/carodto"
)

func decode(t *testing.T, event, data string) (any, error) {
	t.Helper()
	msg := &pushio.Message{Event: event}
	if data != "" {
		msg.Data = json.RawMessage(data)
	}
	return decodeEvent(msg)
}

func TestDecodeValidEvents(t *testing.T) {
	ev, err := decode(t, carodto.EvRosterJoined, `{"roomId":"r1","roster":[{"id":"a","name":"Ann","seat":1}],"status":"waiting"}`)
	if err != nil {
		t.Fatalf("roster-joined: %v", err)
	}
	if rj := ev.(*carodto.RosterJoined); rj.RoomID != "r1" || len(rj.Roster) != 1 {
		t.Fatalf("unexpected roster-joined: %+v", rj)
	}

	ev, err = decode(t, carodto.EvMoveApplied, `{"move":{"row":1,"col":1,"seat":1,"number":3},"board":[[0,0],[0,1]],"turn":2}`)
	if err != nil {
		t.Fatalf("move-applied: %v", err)
	}
	if ma := ev.(*carodto.MoveApplied); ma.Move.Number != 3 || ma.Turn != 2 {
		t.Fatalf("unexpected move-applied: %+v", ma)
	}

	if _, err = decode(t, carodto.EvUndoRejected, ""); err != nil {
		t.Fatalf("undo-rejected with empty payload should decode: %v", err)
	}

	ev, err = decode(t, carodto.EvSessionFinished, `{"winner":-1,"score":[1,1]}`)
	if err != nil {
		t.Fatalf("session-finished draw: %v", err)
	}
	if sf := ev.(*carodto.SessionFinished); sf.Winner != -1 {
		t.Fatalf("unexpected session-finished: %+v", sf)
	}
}

func TestDecodeUnknownEventIsIgnored(t *testing.T) {
	if _, err := decode(t, "never-heard-of-it", `{}`); err != errIgnored {
		t.Fatalf("expected errIgnored, got %v", err)
	}
}

func TestDecodeRejectsShapeAndRangeFailures(t *testing.T) {
	cases := []struct{ name, event, data string }{
		{"wrong type", carodto.EvSessionStarted, `{"turn":"first"}`},
		{"missing payload", carodto.EvRoomDeleted, ""},
		{"missing field", carodto.EvRoomDeleted, `{}`},
		{"seat range", carodto.EvUndoRequested, `{"moveNumber":1,"requestedBy":7}`},
		{"ragged board", carodto.EvUndoApproved, `{"moveNumber":1,"board":[[0,0],[0]]}`},
		{"winner set on reset", carodto.EvSessionReset, `{"board":[[0]],"turn":1,"status":"waiting","winner":1}`},
		{"finished without winner", carodto.EvSessionFinished, `{"winner":0,"score":[0,0]}`},
		{"valid flag on rejection", carodto.EvMoveRejected, `{"valid":true,"message":"?"}`},
	}
	for _, tc := range cases {
		if _, err := decode(t, tc.event, tc.data); err == nil || err == errIgnored {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}
