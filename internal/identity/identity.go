package identity

import (
	"context"
	"strings"
)

// Kind distinguishes how an identity was registered server-side. A guest
// token and an authenticated account id are never interchangeable, even
// when the raw string values collide.
type Kind string

const (
	KindGuest   Kind = "guest"
	KindAccount Kind = "account"
)

// Identity is the process-wide local player identity, resolved once and
// read-only afterwards except for the guest display name.
type Identity struct {
	Kind  Kind
	Value string
	Name  string
}

func (i Identity) IsGuest() bool { return i.Kind == KindGuest }

func (i Identity) IsZero() bool { return i.Value == "" }

// Resolve produces the local identity: the authenticated account when a
// login exists, otherwise the device-persisted guest token (created on
// first need, never regenerated while present).
func Resolve(ctx context.Context, store *Store, accountID, accountName string) (Identity, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID != "" {
		return Identity{Kind: KindAccount, Value: accountID, Name: strings.TrimSpace(accountName)}, nil
	}
	token, err := store.GuestToken(ctx)
	if err != nil {
		return Identity{}, err
	}
	name, err := store.GuestName(ctx)
	if err != nil {
		return Identity{}, err
	}
	if name == "" {
		name = "Guest-" + shortSuffix(token)
	}
	return Identity{Kind: KindGuest, Value: token, Name: name}, nil
}

func shortSuffix(token string) string {
	if len(token) <= 4 {
		return token
	}
	return token[len(token)-4:]
}
