package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"trivia-service/internal/config"
	"trivia-service/internal/infra/postgres"
	pgmigrations "trivia-service/internal/infra/postgres/migrations"
	"trivia-service/internal/logger"
	"trivia-service/internal/questionbank"
)

// NewMigrateCmd applies database migrations and optionally seeds the question table.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seedFile string
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath, seed, seedFile)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "seed the questions table with the built-in pool")
	cmd.Flags().StringVar(&seedFile, "seed-file", "", "seed the questions table from a YAML pool instead")
	return cmd
}

func runMigrations(ctx context.Context, configPath string, seed bool, seedFile string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}
	if !seed && seedFile == "" {
		return nil
	}
	return seedQuestions(ctx, cfg, seedFile, log)
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("no new migrations")
		return nil
	}
	log.Info("migrations applied", zap.String("group", group.String()))
	return nil
}

func seedQuestions(ctx context.Context, cfg config.Config, seedFile string, log *zap.Logger) error {
	questions, err := questionbank.Default()
	if seedFile != "" {
		questions, err = questionbank.LoadFile(seedFile)
	}
	if err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.NewQuestionLoader(pool).Seed(ctx, questions); err != nil {
		return err
	}
	log.Info("questions seeded", zap.Int("count", len(questions)))
	return nil
}
