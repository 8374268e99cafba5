package health

import (
	"context"
	"testing"
	"time"

	"github.com/jellystream/jellystream/internal/store/storetest"
)

func TestCheckStore_FreshStoreNoSweepYet(t *testing.T) {
	st := storetest.New()
	if err := CheckStore(context.Background(), st); err != nil {
		t.Fatalf("expected no error before the maintainer's first sweep, got %v", err)
	}
}

func TestCheckStore_RecentSweepOK(t *testing.T) {
	st := storetest.New()
	if err := st.SetMaintainerLastRun(context.Background(), time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := CheckStore(context.Background(), st); err != nil {
		t.Fatalf("expected no error for a recent sweep, got %v", err)
	}
}

func TestCheckStore_StaleSweepFails(t *testing.T) {
	st := storetest.New()
	if err := st.SetMaintainerLastRun(context.Background(), time.Now().Add(-30*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := CheckStore(context.Background(), st); err == nil {
		t.Fatal("expected an error for a stale maintainer sweep")
	}
}

type failingPing struct{ *storetest.MemStore }

func (f failingPing) Ping(context.Context) error { return context.DeadlineExceeded }

func TestCheckStore_PingFailurePropagates(t *testing.T) {
	st := failingPing{storetest.New()}
	if err := CheckStore(context.Background(), st); err == nil {
		t.Fatal("expected an error when the store is unreachable")
	}
}
