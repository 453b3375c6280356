//go:build unix

package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"time"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/log"
	"github.com/unisane/unisane-go/pkg/transport"
)

// stopTimeout bounds how long Close waits for the daemon process to exit.
const stopTimeout = 5 * time.Second

// process tracks a started daemon.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *process) wait(timeout time.Duration) error {
	select {
	case <-p.done:
	case <-time.After(timeout):
		_ = p.cmd.Process.Kill()
		<-p.done
	}
	return p.err
}

// Spawn creates a FIFO pair, starts cfg.Executable with the channel
// directory and both FIFO paths appended to cfg.Args, and returns a
// client connected to it. Closing the client stops the daemon and
// removes the FIFOs.
func Spawn(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.logger()

	pair, err := transport.NewFIFOPair()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDaemon, err)
	}
	if cfg.ChannelID == "" {
		cfg.ChannelID = filepath.Base(pair.Dir)
	}

	args := append(slices.Clone(cfg.Args), pair.Dir, pair.C2S, pair.S2C)
	cmd := exec.Command(cfg.Executable, args...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		pair.Remove()
		return nil, fmt.Errorf("%w: start %s: %w", ErrDaemon, cfg.Executable, err)
	}
	logger.Info("starting daemon", "pid", cmd.Process.Pid, "channel", pair.Dir)

	proc := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		proc.err = cmd.Wait()
		close(proc.done)
	}()

	openCtx, cancel := context.WithTimeout(ctx, cfg.StartTimeout)
	defer cancel()
	go func() {
		select {
		case <-proc.done:
			cancel()
		case <-openCtx.Done():
		}
	}()

	ch, err := pair.OpenClient(openCtx)
	if err != nil {
		_ = proc.cmd.Process.Kill()
		<-proc.done
		pair.Remove()
		if proc.err != nil {
			err = errors.Join(err, proc.err)
		}
		return nil, fmt.Errorf("%w: connect: %w", ErrDaemon, err)
	}
	ch.SetMaxMessageSize(cfg.MaxMessageSize)
	ch.SetLogger(cfg.EventLogger, cfg.ChannelID, log.RoleClient)

	client, err := NewClient(ch, cfg)
	if err != nil {
		ch.Close()
		_ = proc.wait(0)
		pair.Remove()
		return nil, err
	}
	client.OnClose(func() error {
		cerr := ch.Close()
		if werr := proc.wait(stopTimeout); werr != nil {
			logger.Warn("daemon exited", "error", werr)
		}
		return errors.Join(cerr, pair.Remove())
	})
	logger.Info("connected to daemon", "channel", cfg.ChannelID)
	return client, nil
}

// ServeFIFO opens the daemon ends of an existing FIFO pair and serves b
// until the client exits or hangs up.
func ServeFIFO(ctx context.Context, b backend.Backend, cfg Config, c2s, s2c string) error {
	srv, err := NewServer(b, cfg)
	if err != nil {
		return err
	}

	openCtx, cancel := context.WithTimeout(ctx, cfg.StartTimeout)
	ch, err := transport.OpenServer(openCtx, c2s, s2c)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDaemon, err)
	}
	defer ch.Close()
	ch.SetMaxMessageSize(cfg.MaxMessageSize)
	ch.SetLogger(cfg.EventLogger, srv.channelID, log.RoleDaemon)

	return srv.Serve(ctx, ch)
}
