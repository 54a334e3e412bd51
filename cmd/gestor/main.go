package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"gestor-financiero/internal/commands"
)

// @title Gestor Financiero API
// @version 1.0
// @description Document ingestion, OCR and transaction ledger behind a single gateway.

// @host localhost:3000
// @BasePath /

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
