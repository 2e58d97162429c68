package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/qec"
)

func main() {
	cfg, err := qec.LoadConfig()
	if err != nil {
		log.Fatal("loading config", "err", err)
	}
	qec.SetLogLevel(cfg.LogLevel)

	if err := qec.NewRunner(os.Stdout, cfg).RunDiagrams(qec.DefaultDiagrams()); err != nil {
		log.Error("diagram generation failed", "err", err)
		os.Exit(1)
	}
}
