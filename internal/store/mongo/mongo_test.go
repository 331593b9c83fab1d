package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"pocketplan/internal/core"
	"pocketplan/internal/store"
)

var _ store.Store = (*DB)(nil)

func TestTransactionDocumentRoundTrip(t *testing.T) {
	tx := core.Transaction{
		ID: "t1", Category: "Food", Type: core.Expense, Amount: 12.5,
		Date: core.ISODay("2025-01-02"), Description: "lunch", CreatedAt: "2025-01-02T10:00:00Z",
	}
	raw, err := bson.Marshal(toTxDoc("u1", tx))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var d txDoc
	if err := bson.Unmarshal(raw, &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.UserID != "u1" {
		t.Fatalf("userId = %q", d.UserID)
	}
	if got := d.transaction(); got != tx {
		t.Fatalf("round trip = %+v, want %+v", got, tx)
	}
}

func TestAccountDocumentNormalizesEmailKey(t *testing.T) {
	d := toAccountDoc(core.Account{ID: "a1", Email: " Ana@Example.COM"})
	if d.EmailKey != "ana@example.com" {
		t.Fatalf("emailKey = %q", d.EmailKey)
	}
	if d.account().Email != " Ana@Example.COM" {
		t.Fatalf("display email should be preserved")
	}
}

func TestScopedFilter(t *testing.T) {
	f := scoped("u1", "x")
	if f["_id"] != "x" || f["userId"] != "u1" {
		t.Fatalf("unexpected filter %v", f)
	}
}
