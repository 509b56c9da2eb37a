//go:build !unix

package main

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/vault"
)

func watchVisibility(context.Context, *vault.Manager) {}
