package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trivia-service/internal/app"
	"trivia-service/internal/config"
	"trivia-service/internal/logger"
	transport "trivia-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Auth.JWTSecret == "" {
		return errors.New("jwt secret not configured (auth.jwt_secret or JWT_SECRET)")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	deps, err := buildDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	service := app.NewQuizService(
		deps.sessions,
		deps.questions,
		deps.results,
		deps.users,
		app.WithLogger(log),
		app.WithPublisher(deps.publisher),
		app.WithQuestionsPerSession(cfg.Quiz.QuestionsPerSession),
		app.WithLeaderboardLimit(cfg.Leaderboard.Limit),
		app.WithFetchTimeout(config.TTLDuration(cfg.Leaderboard.FetchTimeout, 10*time.Second)),
	)

	router := transport.NewRouter(transport.RouterConfig{
		Service:        service,
		Auth:           transport.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	// WriteTimeout defaults to 0 since it also bounds websocket connections.
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 0),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting trivia service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
