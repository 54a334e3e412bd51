package api

import (
	"errors"

	"gestor-financiero/internal/api/handlers"
	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/dto"
	"gestor-financiero/pkg/auth"
	"gestor-financiero/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type AppConfig struct {
	Service        string
	BodyLimit      int
	AllowedOrigins string
}

// NewApp builds a fiber app with the middleware and /health endpoint every
// service shares.
func NewApp(cfg AppConfig, appLogger *zap.Logger) *fiber.App {
	if cfg.AllowedOrigins == "" {
		cfg.AllowedOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		AppName:   cfg.Service,
		BodyLimit: cfg.BodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code, msg := apperr.Status(err), apperr.Message(err)
			var e *fiber.Error
			if errors.As(err, &e) {
				code, msg = e.Code, e.Message
			}
			if code >= fiber.StatusInternalServerError {
				appLogger.Error("Unhandled error", zap.String("path", c.Path()), zap.Error(err))
			}
			return c.Status(code).JSON(dto.ErrorResponse{
				Error: msg,
				Code:  apperr.Code(apperr.FromStatus(code)),
			})
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(dto.HealthResponse{Status: "UP", Service: cfg.Service})
	})

	return app
}

func SetupAuthRoutes(app *fiber.App, h *handlers.AuthHandler, jwtManager *auth.JWTManager, appLogger *zap.Logger) {
	app.Post("/register", h.Register)
	app.Post("/login", h.Login)
	app.Get("/me", middleware.AuthMiddleware(jwtManager, appLogger), h.Me)
}

func SetupDocumentRoutes(app *fiber.App, h *handlers.DocumentHandler, jwtManager *auth.JWTManager, appLogger *zap.Logger) {
	protected := app.Group("", middleware.AuthMiddleware(jwtManager, appLogger))

	protected.Post("/upload", h.UploadDocument)
	protected.Get("/documents", h.ListDocuments)
	protected.Get("/documents/:id", h.GetDocument)
	protected.Delete("/documents/:id", h.DeleteDocument)
	protected.Get("/objects", h.ListObjects)
	protected.Get("/view-encoded/*", h.ViewObject)
	protected.Get("/view/*", h.ViewObject)
	protected.Get("/ocr-data/:id", h.GetOCRData)
	protected.Post("/process/:id", h.ProcessDocument)
	protected.Post("/create-transaction/:id", h.CreateTransaction)
}

func SetupFinancialRoutes(app *fiber.App, h *handlers.FinancialHandler, jwtManager *auth.JWTManager, appLogger *zap.Logger) {
	protected := app.Group("", middleware.AuthMiddleware(jwtManager, appLogger))

	protected.Get("/transactions", h.ListTransactions)
	protected.Post("/transactions", h.CreateTransaction)
	protected.Post("/transactions/from-extraction", h.CreateFromExtraction)
	protected.Delete("/transactions/:id", h.DeleteTransaction)
	protected.Get("/categories", h.ListCategories)
}

// SetupOCRRoutes leaves /process open: the OCR service is only reachable
// through the gateway or from the document service on the internal network.
func SetupOCRRoutes(app *fiber.App, h *handlers.OCRHandler) {
	app.Post("/process", h.Process)
}
