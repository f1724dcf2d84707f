package main

import (
	"context"
	"os"

	"marketplace-checkout/internal/config"
	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/logger"
	"marketplace-checkout/internal/seed"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "checkout-seed", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		log.Error("connect db", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := seed.Apply(ctx, pool); err != nil {
		log.Error("seed apply", "err", err)
		pool.Close()
		os.Exit(1)
	}

	log.Info("seed applied", "buyer_id", seed.DemoBuyerID)
}
