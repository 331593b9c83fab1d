package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"pocketplan/internal/config"
	"pocketplan/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", AuthRequired: true}
	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if bc.Type != SQLiteBackend || bc.SeedDemo {
		t.Fatalf("config = %+v", bc)
	}

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	if err == nil || !strings.Contains(err.Error(), "[memory sqlite mongo]") {
		t.Fatalf("unknown backend error should list the choices, got %v", err)
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite database path"},
		{"mongo without uri", Config{Type: MongoBackend, MongoDB: "p"}, "MongoDB URI"},
		{"mongo without db", Config{Type: MongoBackend, MongoURI: "mongodb://x"}, "database name"},
		{"unknown", Config{Type: "csv"}, "invalid backend type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackendSeedsDemo(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend, SeedDemo: true})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	if !res.Demo {
		t.Fatal("memory backend should report demo")
	}
	txs, err := res.Store.ListTransactions(ctx, core.DemoUserID)
	if err != nil || len(txs) != 1 || txs[0].Category != "Charity" {
		t.Fatalf("demo transactions = %+v, %v", txs, err)
	}
	goals, _ := res.Store.ListGoals(ctx, core.DemoUserID)
	if len(goals) != 1 || goals[0].Name != "Laptop" {
		t.Fatalf("demo goals = %+v", goals)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pocketplan.db")
	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	if err := res.Store.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if res.Demo {
		t.Fatal("sqlite backend is persistent")
	}
}
