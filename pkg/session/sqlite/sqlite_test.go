package sqlite

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rtemka/hnfront/pkg/session"
	"github.com/rtemka/hnfront/pkg/session/storetest"
)

var tdb *SQLite

func TestMain(m *testing.M) {
	var err error
	tdb, err = New("file:sessions_test.db?cache=shared&mode=memory")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	code := m.Run()
	_ = tdb.Close()
	os.Exit(code)
}

func TestSQLite(t *testing.T) {
	if tdb == nil {
		t.Skip("you must open connection to SQLite DB to run this test")
	}

	storetest.Run(t, tdb)
}

func TestSQLite_Purge(t *testing.T) {
	ctx := context.Background()

	_, err := tdb.Purge(ctx, time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Purge() = err %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := tdb.Save(ctx, session.New(-time.Duration(i+1)*time.Minute)); err != nil {
			t.Fatalf("Save() = err %v", err)
		}
	}

	n, err := tdb.Purge(ctx, time.Now())
	if err != nil {
		t.Fatalf("Purge() = err %v", err)
	}
	if n != 3 {
		t.Errorf("Purge() = %d sessions, want %d", n, 3)
	}
}
