package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophvault/internal/agent"
	"github.com/dmitrijs2005/gophvault/internal/bootstrap"
	"github.com/dmitrijs2005/gophvault/internal/config"
	"github.com/dmitrijs2005/gophvault/internal/platform"
	"github.com/dmitrijs2005/gophvault/internal/vault"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	defer m.Lock()

	if st, err := m.State(ctx); err == nil && st == vault.StateNoVault {
		logger.Warn(ctx, "no vault yet, create one with the vault CLI first")
	}

	go watchVisibility(ctx, m)

	srv := agent.NewServer(m, cfg.AgentSocket, cfg.AgentTokenTTL, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error(ctx, "agent stopped", "error", err)
	}
}
