// Command seed imports the bundled development data into the database, or
// deletes all tours and users.
//
//	go run ./cmd/seed -import
//	go run ./cmd/seed -delete
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/natours/internal/config"
	"github.com/utafrali/natours/internal/repository/postgres"
	"github.com/utafrali/natours/internal/seed"
	"github.com/utafrali/natours/internal/service"
	"github.com/utafrali/natours/migrations"
	"github.com/utafrali/natours/pkg/database"
	"github.com/utafrali/natours/pkg/logger"
)

func main() {
	doImport := flag.Bool("import", false, "import the development data set")
	doDelete := flag.Bool("delete", false, "delete all tours and users")
	flag.Parse()

	if *doImport == *doDelete {
		fmt.Fprintln(os.Stderr, "usage: seed -import | -delete")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("natours-seed", cfg.LogLevel)

	if err := run(cfg, log, *doImport); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger, doImport bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
		MaxConns: 4,
	}, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	opts := postgres.Options{MaxLimit: cfg.QueryMaxLimit}
	tours := postgres.NewTourRepository(pool, opts)
	reviews := postgres.NewReviewRepository(pool, opts)
	ratings := service.NewRatingAggregator(reviews, tours, service.NewRatingMetrics(prometheus.NewRegistry()), log)
	seeder := seed.NewSeeder(pool, tours, postgres.NewUserRepository(pool, opts), reviews, ratings, log)

	if !doImport {
		if err := seeder.Delete(ctx); err != nil {
			return err
		}
		log.Info("data deleted")
		return nil
	}

	data, err := seed.Load()
	if err != nil {
		return err
	}
	sum, err := seeder.Import(ctx, data)
	if err != nil {
		return err
	}
	log.Info("data imported",
		slog.Int("users", sum.Users),
		slog.Int("tours", sum.Tours),
		slog.Int("reviews", sum.Reviews),
		slog.String("password", seed.DefaultPassword),
	)
	return nil
}
