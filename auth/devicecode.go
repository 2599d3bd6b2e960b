package auth

import (
	"context"
	"errors"
	mc_launcher "github.com/mrmelon54/mc-launcher"
	"go.uber.org/zap"
	"time"
)

type FlowState int

const (
	FlowIdle FlowState = iota
	FlowCodeIssued
	FlowPolling
	FlowLinked
	FlowExpired
)

var flowStateNames = []string{"Idle", "CodeIssued", "Polling", "Linked", "Expired"}

func (s FlowState) String() string {
	if int(s) < len(flowStateNames) {
		return flowStateNames[s]
	}
	return "Unknown"
}

// Flow links a new Microsoft account through the device code grant. Each
// Tick is one second of the flow: it counts down the code lifetime and the
// poll interval, requesting a new code once the old one expired and polling
// the token endpoint whenever the interval ran out.
type Flow struct {
	engine *Engine
	logger *zap.Logger

	// OnCode is called with every newly issued code so it can be shown.
	OnCode func(*DeviceCode)

	state       FlowState
	code        *DeviceCode
	secondsLeft int
	pollIn      int
	interval    int
}

func NewFlow(engine *Engine) *Flow {
	return &Flow{engine: engine, logger: engine.logger.Named("device-code")}
}

func (f *Flow) State() FlowState { return f.state }

// Tick advances the flow by one second. It returns the account once it has
// been linked and authenticated.
func (f *Flow) Tick(ctx context.Context) *mc_launcher.Account {
	if f.state == FlowLinked {
		return nil
	}
	if f.secondsLeft > 0 {
		f.secondsLeft--
	}
	if f.pollIn > 0 {
		f.pollIn--
	}

	if f.code == nil || f.secondsLeft == 0 {
		if f.code != nil {
			f.state = FlowExpired
		}
		f.requestCode(ctx)
		return nil
	}
	if f.pollIn > 0 {
		return nil
	}
	return f.poll(ctx)
}

func (f *Flow) requestCode(ctx context.Context) {
	code, err := f.engine.RequestDeviceCode(ctx)
	if err != nil {
		f.logger.Warn("failed to request device code", zap.Error(err))
		f.code = nil
		return
	}
	f.code = code
	f.interval = max(code.Interval, 1)
	f.pollIn = f.interval
	f.secondsLeft = code.ExpiresIn
	f.state = FlowCodeIssued
	if f.OnCode != nil {
		f.OnCode(code)
	}
}

func (f *Flow) poll(ctx context.Context) *mc_launcher.Account {
	f.state = FlowPolling
	tokens, err := f.engine.PollToken(ctx, f.code.DeviceCode)
	var tokenErr *TokenError
	switch {
	case err == nil:
	case errors.Is(err, ErrAuthorizationPending):
		f.pollIn = f.interval
		f.state = FlowCodeIssued
		return nil
	case errors.Is(err, ErrSlowDown):
		f.interval += 5
		f.pollIn = f.interval
		f.state = FlowCodeIssued
		return nil
	case errors.As(err, &tokenErr):
		f.logger.Warn("device code rejected", zap.Error(err))
		f.secondsLeft = 0
		f.state = FlowExpired
		return nil
	default:
		f.logger.Warn("token poll failed", zap.Error(err))
		f.pollIn = f.interval
		f.state = FlowCodeIssued
		return nil
	}

	acc, err := mc_launcher.NewMicrosoftAccount(tokens)
	if err != nil {
		f.logger.Error("failed to create account", zap.Error(err))
		f.secondsLeft = 1
		return nil
	}
	if err := f.engine.Authenticate(ctx, acc); err != nil {
		// the code is spent, the next tick requests a fresh one
		f.secondsLeft = 1
		f.state = FlowCodeIssued
		return nil
	}
	f.state = FlowLinked
	return acc
}

// Run drives the flow once per second until an account is linked or ctx
// is cancelled.
func (f *Flow) Run(ctx context.Context) (*mc_launcher.Account, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		if acc := f.Tick(ctx); acc != nil {
			return acc, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
