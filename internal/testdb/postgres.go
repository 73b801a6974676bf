//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage  = "postgres:16-alpine"
	postgresUser   = "cadence"
	postgresPass   = "cadence"
	postgresDB     = "cadence_test"
	startupTimeout = 60 * time.Second
)

// Database is an open test database and the container backing it, if any.
type Database struct {
	*sql.DB
	DSN       string
	container testcontainers.Container
}

// Start opens the database named by CADENCE_TEST_DATABASE_URL, or starts a
// PostgreSQL container when the variable is unset.
func Start(ctx context.Context) (*Database, error) {
	if dsn := DatabaseURL(); dsn != "" {
		db, err := open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("external test database %s: %w", MaskURL(dsn), err)
		}
		return &Database{DB: db, DSN: dsn}, nil
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     postgresUser,
				"POSTGRES_PASSWORD": postgresPass,
				"POSTGRES_DB":       postgresDB,
			},
			// The server restarts once after init, so the message appears twice.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(startupTimeout),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := containerDSN(ctx, container)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	db, err := open(ctx, dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &Database{DB: db, DSN: dsn, container: container}, nil
}

// Close closes the pool and terminates the container.
func (d *Database) Close() error {
	err := d.DB.Close()
	if d.container != nil {
		if termErr := d.container.Terminate(context.Background()); termErr != nil && err == nil {
			err = fmt.Errorf("failed to terminate postgres container: %w", termErr)
		}
	}
	return err
}

func containerDSN(ctx context.Context, container testcontainers.Container) (string, error) {
	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("failed to get mapped port: %w", err)
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPass, host, port.Port(), postgresDB), nil
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
