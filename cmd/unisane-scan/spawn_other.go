//go:build !unix

package main

import (
	"context"
	"errors"

	"github.com/unisane/unisane-go/pkg/daemon"
)

func spawnDaemon(context.Context, daemon.Config) (*daemon.Client, error) {
	return nil, errors.New("the daemon backend needs named pipes (unix only)")
}
