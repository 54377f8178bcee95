package postgresql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rushairer/upsertsql"
	"github.com/rushairer/upsertsql/drivers/postgresql"
)

const (
	postgresImage = "postgres:16-alpine"
	postgresPort  = "5432/tcp"
)

const accountsDDL = `CREATE SCHEMA app;
CREATE TABLE app.accounts (
	tenant TEXT NOT NULL,
	email TEXT NOT NULL,
	plan TEXT NOT NULL DEFAULT 'free',
	seats INTEGER CHECK (seats > 0),
	rev INTEGER NOT NULL DEFAULT 0,
	created_by TEXT,
	updated_by TEXT,
	updated_at TIMESTAMPTZ,
	PRIMARY KEY (tenant, email)
)`

func TestPostgres_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	if !isDockerRunning(ctx) {
		t.Skip("Docker is not running, skipping integration test")
	}

	dsn, terminate, err := setupPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("failed to setup postgres container: %v", err)
	}
	defer terminate()

	for _, driverName := range []string{postgresql.DriverName, postgresql.PgxDriverName} {
		t.Run(driverName, func(t *testing.T) {
			db, err := sql.Open(driverName, dsn)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer db.Close()

			if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS app CASCADE`); err != nil {
				t.Fatalf("drop schema: %v", err)
			}
			if _, err := db.ExecContext(ctx, accountsDDL); err != nil {
				t.Fatalf("create table: %v", err)
			}
			exercisePostgres(t, ctx, db)
		})
	}
}

func exercisePostgres(t *testing.T, ctx context.Context, db *sql.DB) {
	keys := []string{"tenant", "email"}

	ignore, err := upsertsql.NewInsertOrIgnoreWriter(ctx, db, postgresql.DefaultDriver, "app", "accounts", keys,
		upsertsql.WithAuditUser("seed"))
	if err != nil {
		t.Fatalf("NewInsertOrIgnoreWriter: %v", err)
	}

	// 第二行缺少 plan，应取列默认值
	records := []upsertsql.Record{
		{{Name: "tenant", Value: upsertsql.Text("t1")}, {Name: "email", Value: upsertsql.Text("a@x")}, {Name: "plan", Value: upsertsql.Text("pro")}, {Name: "seats", Value: upsertsql.Int(5)}},
		{{Name: "tenant", Value: upsertsql.Text("t1")}, {Name: "email", Value: upsertsql.Text("b@x")}, {Name: "seats", Value: upsertsql.Int(1)}},
	}
	for round := 0; round < 2; round++ {
		affected, err := ignore.WriteRecords(ctx, records)
		if err != nil {
			t.Fatalf("round %d: WriteRecords: %v", round, err)
		}
		if want := int64(2 - 2*round); affected != want {
			t.Errorf("round %d: affected = %d, want %d", round, affected, want)
		}
	}

	var plan, createdBy string
	if err := db.QueryRowContext(ctx, `SELECT plan, created_by FROM app.accounts WHERE email = 'b@x'`).Scan(&plan, &createdBy); err != nil {
		t.Fatalf("query: %v", err)
	}
	if plan != "free" || createdBy != "seed" {
		t.Errorf("b@x = (%q, %q), want (free, seed)", plan, createdBy)
	}

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	upsert, err := upsertsql.NewInsertOrUpdateWriter(ctx, db, postgresql.DefaultDriver, "app", "accounts", keys,
		upsertsql.WithAuditUser("sync"),
		upsertsql.WithClock(func() time.Time { return now }),
		upsertsql.WithWhereMaker(upsertsql.IncomingGreater("rev")),
	)
	if err != nil {
		t.Fatalf("NewInsertOrUpdateWriter: %v", err)
	}

	columns := []string{"tenant", "email", "seats", "rev"}
	rows := [][]upsertsql.Value{
		{upsertsql.Text("t1"), upsertsql.Text("a@x"), upsertsql.Int(9), upsertsql.Int(1)},
		{upsertsql.Text("t1"), upsertsql.Text("c@x"), upsertsql.Int(2), upsertsql.Int(1)},
	}
	affected, err := upsert.Write(ctx, columns, rows)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if affected != 2 {
		t.Errorf("upsert affected = %d, want 2", affected)
	}

	// rev 未增大，守卫拦截
	stale := [][]upsertsql.Value{{upsertsql.Text("t1"), upsertsql.Text("a@x"), upsertsql.Int(1), upsertsql.Int(1)}}
	if affected, err = upsert.Write(ctx, columns, stale); err != nil || affected != 0 {
		t.Errorf("stale upsert = (%d, %v), want (0, nil)", affected, err)
	}

	var (
		seats     int
		updatedBy string
		updatedAt time.Time
	)
	if err := db.QueryRowContext(ctx, `SELECT seats, created_by, updated_by, updated_at FROM app.accounts WHERE email = 'a@x'`).
		Scan(&seats, &createdBy, &updatedBy, &updatedAt); err != nil {
		t.Fatalf("query: %v", err)
	}
	if seats != 9 || createdBy != "seed" || updatedBy != "sync" || !updatedAt.Equal(now) {
		t.Errorf("a@x = (%d, %q, %q, %v)", seats, createdBy, updatedBy, updatedAt)
	}

	_, err = upsert.Write(ctx, columns, [][]upsertsql.Value{{upsertsql.Text("t2"), upsertsql.Text("d@x"), upsertsql.Int(0), upsertsql.Int(1)}})
	if !errors.Is(err, upsertsql.ErrConstraintViolation) {
		t.Errorf("expected ErrConstraintViolation, got %v", err)
	}
}

func setupPostgresContainer(ctx context.Context) (string, func(), error) {
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{postgresPort},
		Env: map[string]string{
			"POSTGRES_USER":     "upsert",
			"POSTGRES_PASSWORD": "upsert",
			"POSTGRES_DB":       "upsert",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(2 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to start container: %w", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("failed to get endpoint: %w", err)
	}

	dsn := fmt.Sprintf("postgres://upsert:upsert@%s/upsert?sslmode=disable", endpoint)
	terminate := func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Printf("failed to terminate container: %v\n", err)
		}
	}
	return dsn, terminate, nil
}

func isDockerRunning(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "docker", "info")
	return cmd.Run() == nil
}
