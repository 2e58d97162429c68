package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/qec"
)

func main() {
	cfg, err := qec.LoadConfig()
	if err != nil {
		log.Fatal("loading config", "err", err)
	}
	qec.SetLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Section failures are already printed; the run itself still succeeds.
	if err := qec.NewRunner(os.Stdout, cfg).RunOutputs(ctx); err != nil {
		log.Warn("some sections failed", "err", err)
	}
}
