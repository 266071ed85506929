package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricefeed-api/internal/cli"
	"pricefeed-api/internal/config"
	"pricefeed-api/internal/pipeline"
	"pricefeed-api/internal/svc"
)

var configFile = flag.String("f", "etc/pricefeed.yaml", "the config file")

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[main] Starting price pipeline scheduler...")

	appCfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[main] Failed to load config: %v", err)
	}

	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}

	serviceCtx := svc.NewServiceContext(*appCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[main] Scheduler started, interval=%s. Press Ctrl+C to stop.", appCfg.Pipeline.Interval)
	runScheduler(ctx, serviceCtx, appCfg.Pipeline.Interval, appCfg.Pipeline.RunTimeout)
	log.Println("[main] Scheduler stopped")
}

// runScheduler triggers the pipeline on a fixed cadence until ctx is
// cancelled. The first run fires immediately so a fresh deploy has a
// snapshot before the first tick.
func runScheduler(ctx context.Context, serviceCtx *svc.ServiceContext, interval, runTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runOnce(ctx, serviceCtx, runTimeout)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx, serviceCtx, runTimeout)
		}
	}
}

func runOnce(parentCtx context.Context, serviceCtx *svc.ServiceContext, runTimeout time.Duration) {
	if parentCtx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(parentCtx, runTimeout)
	defer cancel()

	start := time.Now()
	result, err := serviceCtx.Pipeline.Run(ctx)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		log.Printf("[pipeline] [SKIP] previous run still in flight")
	case err != nil:
		log.Printf("[pipeline] [ERROR] %v, took %dms", err, elapsed.Milliseconds())
	case !result.Success:
		log.Printf("[pipeline] [FAIL] %s, took %dms", result.Error, elapsed.Milliseconds())
	default:
		log.Printf("[pipeline] [OK] snapshot %s with %d records, took %dms",
			result.Snapshot.Timestamp, len(result.Snapshot.Records), elapsed.Milliseconds())
	}
}
