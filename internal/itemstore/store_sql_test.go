package itemstore

import (
	"context"
	"errors"
	"testing"

	"github.com/mind-engage/testnav/internal/db"
)

func sqlStore(t *testing.T, sessionID string) *SQLStore {
	t.Helper()
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return NewSQLStore(dbh, sessionID)
}

func TestSQLStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := sqlStore(t, "sess-1")

	if _, ok, err := s.Get(ctx, "Q01"); err != nil || ok {
		t.Fatalf("empty Get = ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, Entry{Identifier: "Q01", Attempt: 1, Payload: []byte(`{"uri":"item://Q01"}`)}); err != nil {
		t.Fatal(err)
	}
	// Upsert path: same key, higher attempt.
	if err := s.Set(ctx, Entry{Identifier: "Q01", Attempt: 2}); err != nil {
		t.Fatal(err)
	}
	e, ok, err := s.Get(ctx, "Q01")
	if err != nil || !ok || e.Attempt != 2 {
		t.Fatalf("Get after upsert = %+v ok=%v err=%v", e, ok, err)
	}

	if err := s.Set(ctx, Entry{Identifier: "Q01", Attempt: 1}); !errors.Is(err, ErrAttemptRegression) {
		t.Fatalf("got %v, want ErrAttemptRegression", err)
	}

	if n, err := s.Len(ctx); err != nil || n != 1 {
		t.Fatalf("Len = %d err=%v", n, err)
	}
	if err := s.Delete(ctx, "Q01"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "Q01"); ok {
		t.Fatal("deleted entry still present")
	}
}

func TestSQLStoreSessionIsolation(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	a := NewSQLStore(dbh, "sess-a")
	b := NewSQLStore(dbh, "sess-b")

	if err := a.Set(ctx, Entry{Identifier: "Q01", Attempt: 5}); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := b.Get(ctx, "Q01"); ok {
		t.Fatal("entries leaked across sessions")
	}
	// The other session starts its own counter.
	if err := b.Set(ctx, Entry{Identifier: "Q01", Attempt: 1}); err != nil {
		t.Fatal(err)
	}
}
