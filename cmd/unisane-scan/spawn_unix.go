//go:build unix

package main

import (
	"context"

	"github.com/unisane/unisane-go/pkg/daemon"
)

func spawnDaemon(ctx context.Context, cfg daemon.Config) (*daemon.Client, error) {
	return daemon.Spawn(ctx, cfg)
}
