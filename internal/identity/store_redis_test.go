package identity

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/haanhng/caro-client-go/pkg/carodto"
)

func newTestStore(t *testing.T, resultsCap int) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	url := fmt.Sprintf("redis://%s/0", mr.Addr())
	s, err := NewStore(url, resultsCap)
	if err != nil {
		t.Fatalf("identity.NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGuestTokenCreatedOnce(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	first, err := s.GuestToken(ctx)
	if err != nil {
		t.Fatalf("GuestToken: %v", err)
	}
	if first == "" {
		t.Fatalf("expected generated token")
	}
	second, err := s.GuestToken(ctx)
	if err != nil {
		t.Fatalf("GuestToken again: %v", err)
	}
	if second != first {
		t.Fatalf("token regenerated: %q vs %q", first, second)
	}
}

func TestResolveGuestIdentity(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	id, err := Resolve(ctx, s, "", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !id.IsGuest() || id.Value == "" || id.Name == "" {
		t.Fatalf("unexpected guest identity: %+v", id)
	}

	if err := s.SetGuestName(ctx, "Alex"); err != nil {
		t.Fatalf("SetGuestName: %v", err)
	}
	id2, err := Resolve(ctx, s, "", "")
	if err != nil {
		t.Fatalf("Resolve after rename: %v", err)
	}
	if id2.Value != id.Value {
		t.Fatalf("token changed across resolves")
	}
	if id2.Name != "Alex" {
		t.Fatalf("expected persisted name, got %q", id2.Name)
	}
}

func TestResolveAccountIdentityBypassesStore(t *testing.T) {
	s := newTestStore(t, 10)
	id, err := Resolve(context.Background(), s, "acct-9", "Ann")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.Kind != KindAccount || id.Value != "acct-9" || id.Name != "Ann" {
		t.Fatalf("unexpected account identity: %+v", id)
	}
}

func TestRecentResultsRingEvictsOldest(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		rec := &carodto.ResultRecord{
			RoomID:     fmt.Sprintf("room-%d", i),
			Code:       fmt.Sprintf("C%d", i),
			Winner:     1,
			MoveCount:  i,
			FinishedAt: time.Now(),
		}
		if err := s.PushResult(ctx, "g-token", rec); err != nil {
			t.Fatalf("PushResult %d: %v", i, err)
		}
	}

	recs, err := s.RecentResults(ctx, "g-token")
	if err != nil {
		t.Fatalf("RecentResults: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(recs))
	}
	if recs[0].RoomID != "room-5" || recs[2].RoomID != "room-3" {
		t.Fatalf("unexpected ring order: %q .. %q", recs[0].RoomID, recs[2].RoomID)
	}
}
