package integration

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"food-compliance/internal/config"
	"food-compliance/internal/database"
	"food-compliance/internal/feature"
	"food-compliance/internal/rules"
	"food-compliance/internal/tokenizer"
	"food-compliance/internal/training"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	Config    config.DatabaseConfig
}

// SetupTestDB creates a PostgreSQL test container and a pool with the
// prediction schema applied.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("compliance"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := postgresContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		t.Fatalf("invalid mapped port %q: %v", mapped.Port(), err)
	}

	dbConfig := config.DatabaseConfig{
		Enabled:         true,
		Host:            host,
		Port:            port,
		User:            "testuser",
		Password:        "testpass",
		Database:        "compliance",
		MaxConnections:  10,
		MinConnections:  2,
		MaxConnLifetime: 300,
	}

	pool, err := database.NewPool(ctx, dbConfig, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		Config:    dbConfig,
	}
}

// CleanupDB removes all audit rows.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	if _, err := pool.Exec(context.Background(), "DELETE FROM predictions"); err != nil {
		t.Logf("failed to clean table predictions: %v", err)
	}
}

// TrainTestModel trains a small model on synthetic data and saves it under
// a temporary directory. It returns the artifact directory.
func TrainTestModel(t *testing.T) (string, *training.Result) {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows, err := rules.NewGenerator(11, now).Generate(40, 40)
	if err != nil {
		t.Fatalf("failed to generate data: %v", err)
	}

	tok, err := tokenizer.New(tokenizer.DefaultVocab(), tokenizer.DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create tokenizer: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "compliance_doc_model")
	opts := training.DefaultOptions()
	opts.Epochs = 2
	opts.BatchSize = 16
	opts.EmbedDim = 16
	opts.HiddenDim = 16
	opts.OutputDir = dir

	res, err := training.NewTrainer(tok, zerolog.Nop()).Train(context.Background(), feature.BuildExamples(rows), opts)
	if err != nil {
		t.Fatalf("failed to train model: %v", err)
	}

	return dir, res
}
