//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophvault/internal/vault"
)

// watchVisibility lets a session hook (screen lock, lid close) tell the
// agent the user went away: SIGUSR1 means background, SIGUSR2 foreground.
func watchVisibility(ctx context.Context, m *vault.Manager) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-sig:
			if s == syscall.SIGUSR1 {
				m.EnterBackground()
			} else {
				m.EnterForeground()
			}
		}
	}
}
