//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/carechat/internal/domain/patient"
	"github.com/ehr/carechat/internal/platform/db"
)

// pool is shared by every test in the package and migrated once in TestMain.
var pool *pgxpool.Pool

// TestMain uses CARECHAT_TEST_DATABASE_URL when set and otherwise starts a
// throwaway postgres container.
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("CARECHAT_TEST_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
			os.Exit(1)
		}
	}

	p, err := db.NewPool(ctx, connStr, 10, 1)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	if _, err := db.NewMigrator(p, db.Migrations()).Up(ctx); err != nil {
		p.Close()
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		os.Exit(1)
	}

	pool = p
	code := m.Run()
	p.Close()
	cleanup()
	os.Exit(code)
}

// resetTables empties every table so tests do not see each other's rows.
func resetTables(t *testing.T) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), `TRUNCATE chat_message, patient CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func strp(s string) *string { return &s }

func createPatient(t *testing.T, svc *patient.Service, name, notes string) *patient.Patient {
	t.Helper()
	in := patient.Input{
		Name:  strp(name),
		Email: strp("jane@example.com"),
		Phone: strp("5551234567"),
		DOB:   strp("1985-06-01"),
	}
	if notes != "" {
		in.MedicalNotes = strp(notes)
	}
	p, err := svc.CreatePatient(context.Background(), in)
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}
