package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/dualcam/internal/library"
	"github.com/smazurov/dualcam/internal/logging"
	"github.com/smazurov/dualcam/internal/orchestrator"
	"github.com/smazurov/dualcam/internal/recording"
)

// Controller is the part of the orchestrator driven by control requests.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	EnableDualDevice(ctx context.Context) (bool, error)
	DisableDualDevice(ctx context.Context) error
	SwitchPrimaryAndSecondary(ctx context.Context) error
	SetCaptureMode(ctx context.Context, m orchestrator.Mode) error
	SetZoom(ctx context.Context, factor float64) (float64, error)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (recording.PairedResult, error)
	SaveRecording(ctx context.Context, result recording.PairedResult) (recording.Saved, error)
	CapturePhoto(ctx context.Context) (library.Asset, error)
}

// Control answers request/reply commands on dualcam.control.*.
type Control struct {
	url     string
	target  Controller
	timeout time.Duration
	conn    *nats.Conn
	sub     *nats.Subscription
	logger  logging.Logger
	mu      sync.Mutex
}

// NewControl creates a control responder. timeout bounds each command.
func NewControl(url string, target Controller, timeout time.Duration, logger logging.Logger) *Control {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Control{url: url, target: target, timeout: timeout, logger: logger}
}

// Start connects and subscribes to control subjects.
func (c *Control) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := nats.Connect(c.url,
		nats.Name("dualcam-control"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn("NATS control disconnected", "error", err)
			}
		}),
	)
	if err != nil {
		return err
	}

	sub, err := conn.Subscribe(SubjectControlPrefix+".*", c.handle)
	if err != nil {
		conn.Close()
		return err
	}
	c.conn, c.sub = conn, sub
	c.logger.Info("NATS control subscribed", "subject", SubjectControlPrefix+".*")
	return nil
}

// Stop unsubscribes and closes the connection. In-flight commands finish.
func (c *Control) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
		c.sub = nil
	}
	if c.conn != nil {
		if err := c.conn.Drain(); err != nil {
			c.conn.Close()
		}
		c.conn = nil
	}
}

func (c *Control) handle(msg *nats.Msg) {
	action := actionOf(msg.Subject)
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	result, err := c.dispatch(ctx, action, msg.Data)
	reply := ControlReply{OK: err == nil, Result: result}
	if err != nil {
		reply.Error = err.Error()
		var setupErr *orchestrator.SetupError
		if errors.As(err, &setupErr) {
			reply.Kind = string(setupErr.Kind)
		}
		c.logger.Warn("Control command failed", "action", action, "error", err)
	} else {
		c.logger.Info("Control command handled", "action", action)
	}

	if msg.Reply == "" {
		return
	}
	data, marshalErr := json.Marshal(reply)
	if marshalErr != nil {
		c.logger.Error("Failed to marshal control reply", "action", action, "error", marshalErr)
		return
	}
	if respErr := msg.Respond(data); respErr != nil {
		c.logger.Warn("Failed to send control reply", "action", action, "error", respErr)
	}
}

func (c *Control) dispatch(ctx context.Context, action string, payload []byte) (any, error) {
	req, err := UnmarshalControlRequest(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	switch action {
	case ActionStart:
		return nil, c.target.Start(ctx)
	case ActionStop:
		return nil, c.target.Stop(ctx)
	case ActionEnableDual:
		enabled, err := c.target.EnableDualDevice(ctx)
		return map[string]bool{"enabled": enabled}, err
	case ActionDisableDual:
		return nil, c.target.DisableDualDevice(ctx)
	case ActionSwitch:
		return nil, c.target.SwitchPrimaryAndSecondary(ctx)
	case ActionSetMode:
		mode, err := orchestrator.ParseMode(req.Mode)
		if err != nil {
			return nil, err
		}
		return nil, c.target.SetCaptureMode(ctx, mode)
	case ActionSetZoom:
		applied, err := c.target.SetZoom(ctx, req.Factor)
		return map[string]float64{"zoom": applied}, err
	case ActionRecordStart:
		return nil, c.target.StartRecording(ctx)
	case ActionRecordStop:
		result, err := c.target.StopRecording(ctx)
		if err != nil {
			return nil, err
		}
		return c.target.SaveRecording(ctx, result)
	case ActionPhoto:
		return c.target.CapturePhoto(ctx)
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}
