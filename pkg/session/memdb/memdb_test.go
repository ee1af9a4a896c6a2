package memdb

import (
	"testing"

	"github.com/rtemka/hnfront/pkg/session/storetest"
)

func TestMemDB(t *testing.T) {
	db := New()
	defer db.Close()

	storetest.Run(t, db)
}
