package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gophvault/internal/bootstrap"
	"github.com/dmitrijs2005/gophvault/internal/cli"
	"github.com/dmitrijs2005/gophvault/internal/config"
	"github.com/dmitrijs2005/gophvault/internal/platform"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	if err := platform.DisableCoreDumps(); err != nil {
		log.Printf("could not disable core dumps: %v", err)
	}

	logger, err := bootstrap.NewLogger(cfg, os.Stderr)
	if err != nil {
		log.Fatalf("%v", err)
	}

	store, closer, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer closer.Close()

	m, err := bootstrap.NewManager(store, cfg, logger)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	cli.NewApp(m, logger, os.Stdin, os.Stdout).Run(ctx)
}
