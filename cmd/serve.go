package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"

	"festreg/cmd/buildCFG"
	"festreg/internal/api/api"
	"festreg/internal/api/handlers"
	"festreg/internal/auth"
	rabbitReader "festreg/internal/consumerWorker"
	"festreg/internal/dto"
	"festreg/internal/mailer"
	"festreg/internal/notify"
	"festreg/internal/rabbit"
	"festreg/internal/repo"
	"festreg/internal/service"
	"festreg/internal/sheets"
	"festreg/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := zlog.Logger

	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	repository, driver, closeRepo, err := openRepository(cfg, &log)
	if err != nil {
		log.Error().Err(err).Msg("failed to open storage")
		return err
	}
	defer closeRepo()

	if driver == buildCFG.DriverPostgres {
		if err := repository.MigrateUp(cmd.Context()); err != nil {
			log.Error().Err(err).Msg("migration failed")
			return err
		}
		log.Info().Msg("Migrations applied successfully")
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var mailSender notify.Sender = notify.LogSender{Log: &log}
	if smtpCfg := buildCFG.BuildSMTPConfig(cfg); smtpCfg != nil {
		mailSender = mailer.New(*smtpCfg, &log)
	}

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Error().Err(err).Msg("failed to load RabbitMQ config")
		return err
	}
	dispatchSender := mailSender
	var reader *rabbitReader.Reader
	if rabbitCfg != nil {
		rmq, err := rabbit.NewRabbit(rabbitCfg.Url, rabbit.Topology{
			Exchange: rabbitCfg.Exchange,
			Queue:    rabbitCfg.Queue,
			Prefetch: rabbitCfg.Prefetch,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to RabbitMQ")
			return err
		}
		defer rmq.Close()

		reader = rabbitReader.NewReader(rmq, mailSender)
		reader.Start(workerCtx)
		dispatchSender = rmq
	}

	notifyCfg := buildCFG.BuildNotifyConfig(cfg)
	dispatcher := notify.NewDispatcher(dispatchSender, notifyCfg.Workers, notifyCfg.QueueSize, &log)
	dispatcher.Start(workerCtx)

	opts := buildCFG.BuildServiceOptions(cfg)
	if sheetsCfg := buildCFG.BuildSheetsConfig(cfg); sheetsCfg.Enabled() {
		client, err := sheets.New(cmd.Context(), sheetsCfg.CredentialsFile, sheetsCfg.SpreadsheetID)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize Google Sheets client")
			return err
		}
		opts.Sheets = client
		log.Info().Str("spreadsheet_id", client.SpreadsheetID()).Msg("Google Sheets export enabled")
	}

	authCfg, err := buildCFG.BuildAuthConfig(cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to load auth config")
		return err
	}
	tokens, err := auth.NewTokens(authCfg.JWTSecret, authCfg.TokenTTL)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize tokens")
		return err
	}

	files, err := storage.NewFileStore(buildCFG.BuildUploadsDir(cfg))
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize upload storage")
		return err
	}

	svc := service.NewService(repository, &log, dispatcher, opts)
	if err := bootstrapAdmin(cmd.Context(), cfg, svc, repository, &log); err != nil {
		log.Error().Err(err).Msg("failed to create bootstrap admin")
		return err
	}

	app := api.NewRouters(&api.Routers{
		Handler: handlers.New(svc, files, tokens, &log),
		Tokens:  tokens,
		Mode:    serverCfg.GinMode,
	})

	srv := &http.Server{
		Addr:              ":" + serverCfg.Port,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case runErr = <-serverErrChan:
		log.Error().Err(runErr).Msg("Server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down server")
	}

	dispatcher.Stop()
	if reader != nil {
		reader.Stop()
	}
	cancelWorkers()

	log.Info().Msg("Shutdown complete")
	return runErr
}

// bootstrapAdmin creates the admin described by bootstrap_admin.* once. It is the
// only way to get an administrator with in-memory storage.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, svc *service.Service, r repo.Repository, log *zerolog.Logger) error {
	email := cfg.GetString("bootstrap_admin.email")
	if email == "" {
		return nil
	}
	if _, err := r.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	u, err := svc.CreateAdmin(ctx, dto.SignupRequest{
		Name:     cfg.GetString("bootstrap_admin.name"),
		Email:    email,
		Phone:    cfg.GetString("bootstrap_admin.phone"),
		Password: cfg.GetString("bootstrap_admin.password"),
	})
	if err != nil {
		return err
	}
	log.Info().Str("user_id", u.ID).Str("email", u.Email).Msg("bootstrap admin created")
	return nil
}
