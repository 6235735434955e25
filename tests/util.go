package testutil

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/trezcool/attendr/core/attendance"
	"github.com/trezcool/attendr/storage/database"
)

// PrepareDB connects to TEST_DATABASE_URL, migrates it and empties the uploads table.
// The test is skipped when the variable is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if _, err = db.Exec("TRUNCATE uploads"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUpload(
	t *testing.T,
	repo attendance.Repository,
	clientID string,
	kind attendance.Kind,
	payload string,
	createdAt ...time.Time,
) attendance.Upload {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	upl, err := repo.CreateUpload(context.Background(), attendance.Upload{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Kind:      kind,
		Payload:   json.RawMessage(payload),
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateUpload() failed: %v", err)
	}
	return upl
}
