package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/log"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/raster"
	"github.com/unisane/unisane-go/pkg/scan"
	"github.com/unisane/unisane-go/pkg/transport"
	"github.com/unisane/unisane-go/pkg/wire"
)

// responseOverhead is reserved in a response for everything but pixel
// data: record keys, frame headers and the per-page metadata.
const responseOverhead = 4096

// handlerFunc executes one command and returns its result.
type handlerFunc func(ctx context.Context, req *wire.Request) (any, error)

// Server answers daemon commands against a backend. It is not safe for
// concurrent use; Serve handles one request at a time.
type Server struct {
	backend   backend.Backend
	cfg       Config
	logger    *slog.Logger
	channelID string

	handlers map[wire.Command]handlerFunc

	devices  map[string]backend.Device
	sessions map[string]*scan.Session
}

// NewServer creates a server for b. The server closes the devices it
// opened when Serve returns; b itself stays open.
func NewServer(b backend.Backend, cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		backend:   b,
		cfg:       cfg,
		logger:    cfg.logger(),
		channelID: cfg.ChannelID,
		devices:   make(map[string]backend.Device),
		sessions:  make(map[string]*scan.Session),
	}
	if s.channelID == "" {
		s.channelID = uuid.New().String()
	}
	s.handlers = map[wire.Command]handlerFunc{
		wire.CommandGetDevices:       s.handleGetDevices,
		wire.CommandOpen:             s.handleOpen,
		wire.CommandClose:            s.handleClose,
		wire.CommandGetOptions:       s.handleGetOptions,
		wire.CommandGetOptionValue:   s.handleGetOptionValue,
		wire.CommandSetOptionValue:   s.handleSetOptionValue,
		wire.CommandReloadOptions:    s.handleReloadOptions,
		wire.CommandScan:             s.handleScan,
		wire.CommandGetImages:        s.handleGetImages,
		wire.CommandScanRead:         s.handleScanRead,
		wire.CommandScanAvailable:    s.handleScanAvailable,
		wire.CommandScanExpectedSize: s.handleScanExpectedSize,
		wire.CommandScanGetImage:     s.handleScanGetImage,
		wire.CommandScanCancel:       s.handleScanCancel,
		wire.CommandExit:             s.handleExit,
	}
	return s, nil
}

// Serve reads requests from ch and answers each in turn. It returns nil
// after the exit command or when the client hangs up, and wraps
// ErrDaemon around channel failures. Devices opened by the server are
// closed on return.
func (s *Server) Serve(ctx context.Context, ch transport.FrameReadWriter) error {
	defer s.shutdown()

	s.logger.Info("daemon ready", "channel", s.channelID)
	log.StateChange(s.cfg.EventLogger, s.channelID, log.StateEntityChannel, "", "OPEN", "")
	defer log.StateChange(s.cfg.EventLogger, s.channelID, log.StateEntityChannel, "OPEN", "CLOSED", "")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := ch.ReadFrame()
		if errors.Is(err, io.EOF) {
			s.logger.Info("client hung up")
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: read request: %w", ErrDaemon, err)
		}

		start := time.Now()
		cmd := "?"
		var resp *wire.Response
		req, err := wire.DecodeRequest(data)
		if err != nil {
			s.logger.Warn("bad request", "error", err)
			resp = wire.NewErrorResponse(err)
		} else {
			cmd = string(req.Command)
			logCommand(s.cfg.EventLogger, s.channelID, log.RoleDaemon, log.DirectionIn, log.MessageTypeRequest, cmd, "", nil)
			s.logger.Debug("> " + cmd)
			resp = s.HandleRequest(ctx, req)
		}

		out, err := wire.EncodeResponse(resp)
		if err == nil && uint64(len(out)) > uint64(s.cfg.MaxMessageSize) {
			err = fmt.Errorf("%w: %s response of %d bytes exceeds %d",
				transport.ErrMessageTooLarge, cmd, len(out), s.cfg.MaxMessageSize)
		}
		if err != nil {
			// Only results can fail to encode or overflow; report that
			// instead so the channel stays usable.
			resp = wire.NewErrorResponse(err)
			if out, err = wire.EncodeResponse(resp); err != nil {
				return fmt.Errorf("%w: encode response: %w", ErrDaemon, err)
			}
		}

		var errKind string
		if resp.Error != nil {
			errKind = string(resp.Error.Kind)
			s.logger.Debug("< error", "command", cmd, "kind", errKind, "message", resp.Error.Message)
		}
		d := time.Since(start)
		logCommand(s.cfg.EventLogger, s.channelID, log.RoleDaemon, log.DirectionOut, log.MessageTypeResponse, cmd, errKind, &d)
		if s.cfg.Observer != nil {
			s.cfg.Observer.ObserveCommand(cmd, d, errKind)
		}

		if err := ch.WriteFrame(out); err != nil {
			return fmt.Errorf("%w: write response: %w", ErrDaemon, err)
		}
		if req != nil && req.Command == wire.CommandExit {
			s.logger.Info("daemon stopped")
			return nil
		}
	}
}

// HandleRequest processes one request and returns the response.
func (s *Server) HandleRequest(ctx context.Context, req *wire.Request) *wire.Response {
	h, ok := s.handlers[req.Command]
	if !ok {
		return wire.NewErrorResponse(fmt.Errorf("%w: %q", wire.ErrUnknownCommand, req.Command))
	}
	result, err := h(ctx, req)
	if err != nil {
		if !errors.Is(err, scan.ErrEndOfPage) && !errors.Is(err, scan.ErrEndOfSession) {
			s.logger.Warn("command failed", "command", req.Command, "error", err)
		}
		return wire.NewErrorResponse(err)
	}
	resp, err := wire.NewResult(result)
	if err != nil {
		return wire.NewErrorResponse(err)
	}
	return resp
}

// shutdown closes every session and device the server opened.
func (s *Server) shutdown() {
	ctx := context.Background()
	for name, sess := range s.sessions {
		if err := sess.Close(ctx); err != nil {
			s.logger.Warn("close session", "device", name, "error", err)
		}
	}
	for name, dev := range s.devices {
		if err := dev.Close(); err != nil {
			s.logger.Warn("close device", "device", name, "error", err)
		}
	}
	clear(s.sessions)
	clear(s.devices)
}

// device returns the cached device, opening it on first use.
func (s *Server) device(ctx context.Context, name string) (backend.Device, error) {
	if dev, ok := s.devices[name]; ok {
		return dev, nil
	}
	dev, err := s.backend.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	s.devices[name] = dev
	return dev, nil
}

// deviceArg decodes the device name in argument 0 and returns the device.
func (s *Server) deviceArg(ctx context.Context, req *wire.Request) (string, backend.Device, error) {
	var name string
	if err := req.Arg(0, &name); err != nil {
		return "", nil, err
	}
	dev, err := s.device(ctx, name)
	return name, dev, err
}

// sessionArg decodes the device name in argument 0 and returns its session.
func (s *Server) sessionArg(req *wire.Request) (*scan.Session, error) {
	var name string
	if err := req.Arg(0, &name); err != nil {
		return nil, err
	}
	sess, ok := s.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w for %q", ErrNoSession, name)
	}
	return sess, nil
}

func (s *Server) handleGetDevices(ctx context.Context, req *wire.Request) (any, error) {
	var localOnly bool
	if _, err := req.OptionalArg(0, "local_only", &localOnly); err != nil {
		return nil, err
	}
	return s.backend.Devices(ctx, localOnly)
}

func (s *Server) handleOpen(ctx context.Context, req *wire.Request) (any, error) {
	_, dev, err := s.deviceArg(ctx, req)
	if err != nil {
		return nil, err
	}
	return dev.Info(), nil
}

func (s *Server) handleClose(ctx context.Context, req *wire.Request) (any, error) {
	var name string
	if err := req.Arg(0, &name); err != nil {
		return nil, err
	}
	if sess, ok := s.sessions[name]; ok {
		delete(s.sessions, name)
		if err := sess.Close(ctx); err != nil {
			s.logger.Warn("close session", "device", name, "error", err)
		}
	}
	dev, ok := s.devices[name]
	if !ok {
		return nil, nil
	}
	delete(s.devices, name)
	return nil, dev.Close()
}

func (s *Server) handleGetOptions(ctx context.Context, req *wire.Request) (any, error) {
	_, dev, err := s.deviceArg(ctx, req)
	if err != nil {
		return nil, err
	}
	opts, err := dev.Options(ctx)
	if err != nil {
		return nil, err
	}
	all := opts.All()
	descs := make([]option.Descriptor, 0, len(all))
	for _, o := range all {
		descs = append(descs, o.Descriptor())
	}
	return descs, nil
}

func (s *Server) handleGetOptionValue(ctx context.Context, req *wire.Request) (any, error) {
	_, dev, err := s.deviceArg(ctx, req)
	if err != nil {
		return nil, err
	}
	var name string
	if err := req.Arg(1, &name); err != nil {
		return nil, err
	}
	opts, err := dev.Options(ctx)
	if err != nil {
		return nil, err
	}
	o, err := opts.Lookup(name)
	if err != nil {
		return nil, err
	}
	v, err := o.Value(ctx)
	if err != nil {
		return nil, err
	}
	return wire.ValueOf(v)
}

func (s *Server) handleSetOptionValue(ctx context.Context, req *wire.Request) (any, error) {
	_, dev, err := s.deviceArg(ctx, req)
	if err != nil {
		return nil, err
	}
	var name string
	var value wire.Value
	if err := req.Arg(1, &name); err != nil {
		return nil, err
	}
	if err := req.Arg(2, &value); err != nil {
		return nil, err
	}
	opts, err := dev.Options(ctx)
	if err != nil {
		return nil, err
	}
	o, err := opts.Lookup(name)
	if err != nil {
		return nil, err
	}
	return nil, o.SetValue(ctx, value.Any())
}

func (s *Server) handleReloadOptions(ctx context.Context, req *wire.Request) (any, error) {
	_, dev, err := s.deviceArg(ctx, req)
	if err != nil {
		return nil, err
	}
	return nil, dev.ReloadOptions(ctx)
}

func (s *Server) handleScan(ctx context.Context, req *wire.Request) (any, error) {
	name, dev, err := s.deviceArg(ctx, req)
	if err != nil {
		return nil, err
	}
	var multiple bool
	if _, err := req.OptionalArg(1, "multiple", &multiple); err != nil {
		return nil, err
	}
	if prev, ok := s.sessions[name]; ok {
		delete(s.sessions, name)
		_ = prev.Close(ctx)
	}
	sess, err := dev.Scan(ctx, multiple)
	if err != nil {
		return nil, err
	}
	s.sessions[name] = sess
	return nil, nil
}

// handleGetImages returns the pages from index from on, as many as fit
// in one response. The client asks again until it gets none. A single
// page larger than the response budget fails with
// transport.ErrMessageTooLarge; it can still be fetched in slices with
// scan_get_image while the session is live.
func (s *Server) handleGetImages(ctx context.Context, req *wire.Request) (any, error) {
	sess, err := s.sessionArg(req)
	if err != nil {
		return nil, err
	}
	var from int
	if _, err := req.OptionalArg(1, "from", &from); err != nil {
		return nil, err
	}
	images := sess.Images()
	budget := s.pageBudget()
	var (
		frames []raster.Frame
		size   uint64
	)
	for i := max(0, from); i < len(images); i++ {
		f := raster.ToFrame(images[i])
		n := uint64(len(f.Pix))
		if n > budget {
			if len(frames) > 0 {
				break
			}
			return nil, fmt.Errorf("%w: page %d has %d bytes, limit %d",
				transport.ErrMessageTooLarge, i, n, budget)
		}
		if size+n > budget {
			break
		}
		size += n
		frames = append(frames, f)
	}
	if frames == nil {
		frames = []raster.Frame{}
	}
	return frames, nil
}

// pageBudget is the pixel data that fits in one response.
func (s *Server) pageBudget() uint64 {
	limit := uint64(s.cfg.MaxMessageSize)
	if limit <= responseOverhead {
		return 0
	}
	return limit - responseOverhead
}

func (s *Server) handleScanRead(ctx context.Context, req *wire.Request) (any, error) {
	sess, err := s.sessionArg(req)
	if err != nil {
		return nil, err
	}
	return sess.Scan().Read(ctx)
}

func (s *Server) handleScanAvailable(ctx context.Context, req *wire.Request) (any, error) {
	sess, err := s.sessionArg(req)
	if err != nil {
		return nil, err
	}
	start, end, err := sess.Scan().AvailableLines(ctx)
	if err != nil {
		return nil, err
	}
	return wire.LineRange{Start: start, End: end}, nil
}

func (s *Server) handleScanExpectedSize(ctx context.Context, req *wire.Request) (any, error) {
	sess, err := s.sessionArg(req)
	if err != nil {
		return nil, err
	}
	w, h, err := sess.Scan().ExpectedSize(ctx)
	if err != nil {
		return nil, err
	}
	return wire.Size{Width: w, Height: h}, nil
}

func (s *Server) handleScanGetImage(ctx context.Context, req *wire.Request) (any, error) {
	sess, err := s.sessionArg(req)
	if err != nil {
		return nil, err
	}
	start, end := 0, -1
	if _, err := req.OptionalArg(1, "start", &start); err != nil {
		return nil, err
	}
	if _, err := req.OptionalArg(2, "end", &end); err != nil {
		return nil, err
	}
	img, err := sess.Scan().Image(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return raster.ToFrame(img), nil
}

func (s *Server) handleScanCancel(ctx context.Context, req *wire.Request) (any, error) {
	sess, err := s.sessionArg(req)
	if err != nil {
		return nil, err
	}
	return nil, sess.Scan().Cancel(ctx)
}

func (s *Server) handleExit(ctx context.Context, req *wire.Request) (any, error) {
	return nil, nil
}
