// Command snapshot fetches the full catalog scope once and writes it to the
// snapshot file. Useful for seeding the alternate on-disk data source without
// running the API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/oikotie-tools/apartment-radar/internal/config"
	"github.com/oikotie-tools/apartment-radar/internal/engine"
	"github.com/oikotie-tools/apartment-radar/internal/logger"
	"github.com/oikotie-tools/apartment-radar/internal/oikotie"
	"github.com/oikotie-tools/apartment-radar/internal/snapshot"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("snapshot")
	cfg, err := config.LoadSnapshot()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	client := oikotie.New(cfg.OikotieBaseURL, cfg.UpstreamTimeout, log)
	agg := engine.New(client, cfg.FetchCap, cfg.FetchBatchSize, log)

	listings, err := agg.FetchAll(runCtx)
	if err != nil {
		log.Error("fetch catalog", slog.Any("err", err))
		os.Exit(1)
	}

	snap, err := snapshot.NewStore(cfg.OutputPath).Save(listings)
	if err != nil {
		log.Error("save snapshot", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("snapshot written",
		slog.String("path", cfg.OutputPath),
		slog.String("id", snap.ID),
		slog.Int("count", snap.Count),
	)
}
