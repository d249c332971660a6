package identity

// RosterEntry is the minimal roster projection the resolver needs.
type RosterEntry struct {
	ID    string
	Guest bool
	Seat  int
}

// SeatOccupants mirrors the session document's raw per-seat occupant
// fields. The server fills these before the roster array is populated,
// so they serve as a fallback during join races.
type SeatOccupants struct {
	Seat1ID    string
	Seat1Guest bool
	Seat2ID    string
	Seat2Guest bool
}

// SeatNone means the local identity occupies neither seat. This is a
// valid outcome (spectator or stale state), not an error.
const SeatNone = 0

// ResolveSeat matches the local identity against the roster, falling back
// to the raw seat-occupant fields when the roster has not been populated
// yet. A match requires both value equality and kind equality: a guest
// token that happens to equal an account id must not match.
func ResolveSeat(occ SeatOccupants, roster []RosterEntry, id Identity) int {
	if id.IsZero() {
		return SeatNone
	}
	for _, e := range roster {
		if e.Seat != 1 && e.Seat != 2 {
			continue
		}
		if e.ID == id.Value && e.Guest == id.IsGuest() {
			return e.Seat
		}
	}
	if occ.Seat1ID == id.Value && occ.Seat1Guest == id.IsGuest() {
		return 1
	}
	if occ.Seat2ID == id.Value && occ.Seat2Guest == id.IsGuest() {
		return 2
	}
	return SeatNone
}
