package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casebook/internal/bootstrap"
	"casebook/internal/config"
	"casebook/internal/pkg/logger"
	"casebook/internal/server"
	"casebook/internal/tracer"
	"casebook/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer sysLogger.Sync()

	// 2. Initialize Tracer (no-op unless OTEL_ENABLED)
	shutdownTracer := tracer.InitTracer(cfg.Otel)
	defer shutdownTracer(context.Background())

	// 3. Initialize Database (only the database backend keeps its own store)
	var gormDB *gorm.DB
	if cfg.Backend.Driver == "database" {
		var err error
		gormDB, err = database.NewGormDB(database.GormConfig{
			Driver:     cfg.Database.Driver,
			Connection: cfg.Database.Connection,
			LogLevel:   cfg.Database.LogLevel,
		})
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
	}

	// 4. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg, sysLogger)
	if err != nil {
		log.Panicf("Unable to bootstrap container: %v", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Start Background Services
	if container.ReceiptService != nil {
		if err := container.ReceiptService.Start(ctx, container.NatsSubscriber); err != nil {
			sysLogger.Error("MAIN", "Receipt consumer failed to start", map[string]interface{}{"error": err})
		}
	}

	// 6. Initialize and Run Server
	srv := server.New(cfg, container)
	go func() {
		if err := srv.Run(); err != nil {
			sysLogger.Error("MAIN", "Server stopped", map[string]interface{}{"error": err})
			stop()
		}
	}()

	<-ctx.Done()
	sysLogger.Info("MAIN", "Shutting down", nil)

	done := make(chan struct{})
	go func() {
		if err := srv.Shutdown(); err != nil {
			sysLogger.Error("MAIN", "Server shutdown failed", map[string]interface{}{"error": err})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		sysLogger.Warn("MAIN", "Server shutdown timed out", nil)
	}
}
