package main

import (
	"context"
	"flag"
	"os"

	"marketplace-checkout/internal/config"
	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/logger"
	"marketplace-checkout/internal/migrate"
)

func main() {
	down := flag.Bool("down", false, "revert every applied migration")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(logger.Options{Service: "checkout-migrate", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		log.Error("connect db", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if *down {
		if err := migrate.Rollback(ctx, pool); err != nil {
			log.Error("rollback migrations", "err", err)
			pool.Close()
			os.Exit(1)
		}
		log.Info("migrations rolled back")
		return
	}

	if err := migrate.Apply(ctx, pool); err != nil {
		log.Error("apply migrations", "err", err)
		pool.Close()
		os.Exit(1)
	}
	log.Info("migrations applied")
}
