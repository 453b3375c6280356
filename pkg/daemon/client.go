package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/log"
	"github.com/unisane/unisane-go/pkg/transport"
	"github.com/unisane/unisane-go/pkg/wire"
)

// exitTimeout bounds the exit command sent by Close.
const exitTimeout = 5 * time.Second

// Client talks to a daemon and implements backend.Backend.
type Client struct {
	ch        transport.FrameReadWriter
	cfg       Config
	logger    *slog.Logger
	channelID string

	// mu serializes exchanges; err is the sticky channel failure.
	mu  sync.Mutex
	err error

	closers   []func() error
	closeOnce sync.Once
	closeErr  error
}

// NewClient creates a client over an open channel.
func NewClient(ch transport.FrameReadWriter, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		ch:        ch,
		cfg:       cfg,
		logger:    cfg.logger(),
		channelID: cfg.ChannelID,
	}
	if c.channelID == "" {
		c.channelID = uuid.New().String()
	}
	return c, nil
}

// OnClose registers fn to run after the exit command during Close.
// Functions run in registration order.
func (c *Client) OnClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

// Err returns the channel failure, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

type exchangeResult struct {
	resp *wire.Response
	err  error
}

// Call sends cmd with args and decodes the result into result, which may
// be nil. Errors raised in the daemon are returned rebuilt; a channel
// failure wraps ErrDaemon and poisons the client. If ctx ends while
// waiting for the answer the channel is out of step and fails too.
func (c *Client) Call(ctx context.Context, cmd wire.Command, result any, args ...any) error {
	req, err := wire.NewRequest(cmd, args...)
	if err != nil {
		return err
	}
	data, err := wire.EncodeRequest(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}

	start := time.Now()
	logCommand(c.cfg.EventLogger, c.channelID, log.RoleClient, log.DirectionOut, log.MessageTypeRequest, string(cmd), "", nil)

	done := make(chan exchangeResult, 1)
	go func() {
		resp, err := c.exchange(data)
		done <- exchangeResult{resp, err}
	}()

	var res exchangeResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err != nil {
		c.err = fmt.Errorf("%w: %s: %w", ErrDaemon, cmd, res.err)
		c.mu.Unlock()
		c.logger.Error("daemon channel failed", "command", cmd, "error", res.err)
		log.Error(c.cfg.EventLogger, c.channelID, log.LayerWire, res.err, string(cmd))
		return c.err
	}
	c.mu.Unlock()

	var errKind string
	if res.resp.Error != nil {
		errKind = string(res.resp.Error.Kind)
	}
	d := time.Since(start)
	logCommand(c.cfg.EventLogger, c.channelID, log.RoleClient, log.DirectionIn, log.MessageTypeResponse, string(cmd), errKind, &d)

	if res.resp.Error != nil {
		return res.resp.Error.Err()
	}
	if err := res.resp.Decode(result); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDaemon, cmd, err)
	}
	return nil
}

// exchange writes one request and reads its response.
func (c *Client) exchange(data []byte) (*wire.Response, error) {
	if err := c.ch.WriteFrame(data); err != nil {
		return nil, err
	}
	out, err := c.ch.ReadFrame()
	if err != nil {
		return nil, err
	}
	return wire.DecodeResponse(out)
}

// Devices lists the daemon's devices.
func (c *Client) Devices(ctx context.Context, localOnly bool) ([]backend.Info, error) {
	var infos []backend.Info
	if err := c.Call(ctx, wire.CommandGetDevices, &infos, localOnly); err != nil {
		return nil, err
	}
	return infos, nil
}

// Open opens the named device in the daemon.
func (c *Client) Open(ctx context.Context, name string) (backend.Device, error) {
	var info backend.Info
	if err := c.Call(ctx, wire.CommandOpen, &info, name); err != nil {
		return nil, err
	}
	return &remoteDevice{client: c, info: info}, nil
}

// Close asks the daemon to exit and runs the registered close functions.
// Safe to call multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		if c.Err() == nil {
			ctx, cancel := context.WithTimeout(context.Background(), exitTimeout)
			if err := c.Call(ctx, wire.CommandExit, nil); err != nil {
				errs = append(errs, err)
			}
			cancel()
		}
		for _, fn := range c.closers {
			if err := fn(); err != nil {
				errs = append(errs, err)
			}
		}
		c.mu.Lock()
		if c.err == nil {
			c.err = fmt.Errorf("%w: client closed", ErrDaemon)
		}
		c.mu.Unlock()
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

var _ backend.Backend = (*Client)(nil)
