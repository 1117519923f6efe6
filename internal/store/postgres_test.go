package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/tutor-portal/internal/platform/database"
	"github.com/p-n-ai/tutor-portal/internal/store"
)

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := store.NewPostgresStore(nil); err == nil {
		t.Error("NewPostgresStore(nil) should return error")
	}
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("tutor"),
		postgres.WithUsername("tutor"),
		postgres.WithPassword("tutor"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	db, err := database.New(connectCtx, database.Options{URL: url, MaxConns: 5, MinConns: 1})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.HealthCheck(ctx); err == nil {
		t.Fatal("HealthCheck() should fail before the schema is applied")
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// A second run must be a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if err := db.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() after Migrate error = %v", err)
	}

	runStoreSuite(t, func(t *testing.T) store.Store {
		_, err := db.Pool.Exec(ctx, `TRUNCATE quiz_attempts, progress, quiz_questions, topics, modules RESTART IDENTITY CASCADE`)
		if err != nil {
			t.Fatalf("truncate: %v", err)
		}
		s, err := store.NewPostgresStore(db.Pool)
		if err != nil {
			t.Fatalf("NewPostgresStore() error = %v", err)
		}
		return s
	})
}
