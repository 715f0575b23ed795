package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"quitflow/internal/app"
	"quitflow/internal/db"
	"quitflow/internal/ledger"
	"quitflow/internal/plan"
	"quitflow/internal/questionnaire"
	"quitflow/internal/remote"
	"quitflow/internal/report"
)

func main() {
	cfg := app.LoadConfig()
	ctx := context.Background()

	var dbConn *sql.DB
	var stores app.StoreFactory

	switch cfg.LedgerDriver {
	case "memory":
		stores = func(string) ledger.Store { return ledger.NewMemoryStore() }
	case "sqlite":
		conn, err := db.OpenSQLite(ctx, cfg.LedgerSQLitePath)
		if err != nil {
			log.Printf("sqlite error: %v", err)
			os.Exit(1)
		}
		dbConn = conn
	case "postgres":
		conn, err := db.OpenPostgresWithConfig(ctx, cfg.DBDSN, db.PostgresConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifeMins) * time.Minute,
		})
		if err != nil {
			log.Printf("database error: %v", err)
			os.Exit(1)
		}
		dbConn = conn
	default:
		log.Printf("unknown LEDGER_DRIVER %q", cfg.LedgerDriver)
		os.Exit(1)
	}

	if dbConn != nil {
		defer dbConn.Close()
		if err := ledger.Migrate(ctx, dbConn); err != nil {
			log.Printf("migrate error: %v", err)
			os.Exit(1)
		}
		stores = func(sessionID string) ledger.Store {
			return ledger.NewSQLStore(dbConn, sessionID)
		}
	}

	client := remote.NewClient(remote.Config{
		BaseURL: cfg.APIBaseURL,
		UserID:  cfg.UserID,
		HTTPClient: &http.Client{
			Timeout: time.Duration(cfg.APITimeoutSecs) * time.Second,
		},
	})

	initial := questionnaire.Coordinate{
		OrderID:     cfg.InitialOrderID,
		VariationID: cfg.InitialVariationID,
	}
	registry := app.NewSessionRegistry(client, stores, initial, time.Duration(cfg.SessionIdleMinutes)*time.Minute)
	registry.StartSweeper(ctx)

	planSvc := plan.NewService(client, time.Duration(cfg.PlanCacheTTLSecs)*time.Second)
	reportSvc := report.NewService()

	r := app.NewRouter(cfg, registry, planSvc, reportSvc, dbConn)

	log.Printf("quitflow web listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
