// The main package for the racewinners service executable.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/onthisday/racewinners/internal/config"
	"github.com/onthisday/racewinners/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (optional, env vars still apply)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	app, err := server.Build(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build:", err)
		os.Exit(1)
	}

	if err := app.Run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "run:", err)
		os.Exit(1)
	}
}
