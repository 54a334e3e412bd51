package commands

import (
	"context"
	"errors"
	"fmt"

	"gestor-financiero/internal/api"
	"gestor-financiero/internal/api/handlers"
	"gestor-financiero/internal/clients"
	"gestor-financiero/internal/gateway"
	"gestor-financiero/internal/migrations"
	"gestor-financiero/internal/ocr"
	"gestor-financiero/internal/service"
	"gestor-financiero/internal/storage"
	"gestor-financiero/pkg/config"
	"gestor-financiero/pkg/logger"
	"gestor-financiero/pkg/postgres"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newGatewayCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the API gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, appLogger, err := bootstrap("api-gateway")
			if err != nil {
				return err
			}
			defer logger.Sync()

			table, err := gateway.DefaultTable(&cfg.Gateway)
			if err != nil {
				return err
			}
			for _, r := range table.Routes() {
				appLogger.Info("Route registered", zap.String("prefix", r.Prefix), zap.String("target", r.Target))
			}

			jwtManager := newJWTManager(&cfg.JWT, appLogger)
			app := api.NewApp(api.AppConfig{
				Service:        "api-gateway",
				BodyLimit:      bodyLimit(cfg),
				AllowedOrigins: cfg.Gateway.AllowedOrigins,
			}, appLogger)
			gateway.SetupRoutes(app, gateway.New(table, jwtManager, appLogger), &cfg.Gateway)

			return serve(cmd.Context(), app, pick(port, cfg.Server.GatewayPort), appLogger)
		},
	}
	portFlag(cmd, &port)
	return cmd
}

func newAuthCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Run the auth service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, appLogger, err := bootstrap("auth-service")
			if err != nil {
				return err
			}
			defer logger.Sync()

			repos, closeRepos, err := openRepositories(cmd.Context(), cfg, appLogger)
			if err != nil {
				return err
			}
			defer closeRepos()

			jwtManager := newJWTManager(&cfg.JWT, appLogger)
			authService := service.NewAuthService(repos.Users, jwtManager, appLogger)

			app := api.NewApp(api.AppConfig{Service: "auth-service"}, appLogger)
			api.SetupAuthRoutes(app, handlers.NewAuthHandler(authService, appLogger), jwtManager, appLogger)

			return serve(cmd.Context(), app, pick(port, cfg.Server.AuthPort), appLogger)
		},
	}
	portFlag(cmd, &port)
	return cmd
}

func newDocumentsCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Run the document service and its OCR workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, appLogger, err := bootstrap("document-service")
			if err != nil {
				return err
			}
			defer logger.Sync()

			repos, closeRepos, err := openRepositories(ctx, cfg, appLogger)
			if err != nil {
				return err
			}
			defer closeRepos()

			store, err := storage.New(ctx, &cfg.Storage, appLogger)
			if err != nil {
				return err
			}
			// Uploads wait for the bucket themselves; this only warms it up.
			go func() {
				if err := store.Connect(ctx); err != nil {
					appLogger.Warn("Object storage not ready yet", zap.Error(err))
				}
			}()

			extractor, closeExtractor, err := newExtractor(ctx, cfg, appLogger)
			if err != nil {
				return err
			}
			defer closeExtractor()

			registry := service.NewRegistry(repos.Documents, appLogger)
			worker := service.NewOCRWorker(extractor, store, registry, repos.OCRResults, service.OCRWorkerConfig{
				Workers:   cfg.OCR.Workers,
				QueueSize: cfg.OCR.QueueSize,
				Timeout:   cfg.OCR.Timeout,
			}, appLogger)
			worker.Start()
			defer worker.Stop()

			ledger := clients.NewLedgerClient(cfg.Services.LedgerURL, cfg.Services.LedgerTimeout, appLogger)
			docService := service.NewDocumentService(registry, repos.OCRResults, store, worker, ledger, cfg.Documents.MaxUploadSize, appLogger)
			go docService.ConsumeResults(ctx)

			jwtManager := newJWTManager(&cfg.JWT, appLogger)
			app := api.NewApp(api.AppConfig{Service: "document-service", BodyLimit: bodyLimit(cfg)}, appLogger)
			api.SetupDocumentRoutes(app, handlers.NewDocumentHandler(docService, appLogger), jwtManager, appLogger)

			return serve(ctx, app, pick(port, cfg.Server.DocumentsPort), appLogger)
		},
	}
	portFlag(cmd, &port)
	return cmd
}

func newFinancialCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "financial",
		Short: "Run the transaction ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, appLogger, err := bootstrap("financial-service")
			if err != nil {
				return err
			}
			defer logger.Sync()

			repos, closeRepos, err := openRepositories(cmd.Context(), cfg, appLogger)
			if err != nil {
				return err
			}
			defer closeRepos()

			jwtManager := newJWTManager(&cfg.JWT, appLogger)
			ledger := service.NewLedgerService(repos.Transactions, repos.Categories, appLogger)

			app := api.NewApp(api.AppConfig{Service: "financial-service"}, appLogger)
			api.SetupFinancialRoutes(app, handlers.NewFinancialHandler(ledger, appLogger), jwtManager, appLogger)

			return serve(cmd.Context(), app, pick(port, cfg.Server.FinancialPort), appLogger)
		},
	}
	portFlag(cmd, &port)
	return cmd
}

func newOCRCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "ocr",
		Short: "Run the OCR extraction service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, appLogger, err := bootstrap("ocr-service")
			if err != nil {
				return err
			}
			defer logger.Sync()

			processor, closeProcessor, err := newProcessor(cmd.Context(), cfg, appLogger)
			if err != nil {
				return err
			}
			defer closeProcessor()
			appLogger.Info("OCR engine selected", zap.String("engine", processor.EngineName()))

			app := api.NewApp(api.AppConfig{Service: "ocr-service", BodyLimit: bodyLimit(cfg)}, appLogger)
			api.SetupOCRRoutes(app, handlers.NewOCRHandler(processor, appLogger))

			return serve(cmd.Context(), app, pick(port, cfg.Server.OCRPort), appLogger)
		},
	}
	portFlag(cmd, &port)
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, appLogger, err := bootstrap("migrate")
			if err != nil {
				return err
			}
			defer logger.Sync()

			pool, err := postgres.NewPool(cmd.Context(), &cfg.Database, appLogger)
			if err != nil {
				return err
			}
			defer pool.Close()

			db := postgres.StdlibDB(pool)
			defer db.Close()
			if err := migrations.Up(cmd.Context(), db); err != nil {
				return err
			}
			appLogger.Info("Database migrations applied")
			return nil
		},
	}
}

var errUnknownProvider = errors.New("unknown OCR provider")

// newProcessor builds the in-process OCR pipeline for the configured provider.
// With tesseract, GigaChat still structures text when a key is configured.
func newProcessor(ctx context.Context, cfg *config.Config, appLogger *zap.Logger) (*ocr.Processor, func(), error) {
	switch cfg.OCR.Provider {
	case "gigachat":
		engine, err := ocr.NewGigaChatEngine(ctx, &cfg.GigaChat, appLogger)
		if err != nil {
			return nil, nil, err
		}
		return ocr.NewProcessor(engine, engine, appLogger), func() { _ = engine.Close() }, nil
	case "tesseract", "":
		engine := ocr.NewTesseractEngine(cfg.OCR.Language, appLogger)
		if cfg.GigaChat.APIKey == "" {
			return ocr.NewProcessor(engine, nil, appLogger), func() {}, nil
		}
		structurer, err := ocr.NewGigaChatEngine(ctx, &cfg.GigaChat, appLogger)
		if err != nil {
			appLogger.Warn("GigaChat unavailable, using regex extraction only", zap.Error(err))
			return ocr.NewProcessor(engine, nil, appLogger), func() {}, nil
		}
		return ocr.NewProcessor(engine, structurer, appLogger), func() { _ = structurer.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", errUnknownProvider, cfg.OCR.Provider)
	}
}

// newExtractor returns the remote OCR service client, or an in-process
// processor when OCR_IN_PROCESS is set.
func newExtractor(ctx context.Context, cfg *config.Config, appLogger *zap.Logger) (service.OCRExtractor, func(), error) {
	if !cfg.OCR.InProcess && cfg.OCR.ServiceURL != "" {
		return clients.NewOCRClient(cfg.OCR.ServiceURL, cfg.OCR.Timeout, appLogger), func() {}, nil
	}
	appLogger.Info("Running OCR in-process")
	processor, cleanup, err := newProcessor(ctx, cfg, appLogger)
	if err != nil {
		return nil, nil, err
	}
	return processor, cleanup, nil
}

func bodyLimit(cfg *config.Config) int {
	// multipart framing on top of the file itself
	return int(cfg.Documents.MaxUploadSize) + 1024*1024
}
