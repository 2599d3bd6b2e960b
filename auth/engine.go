package auth

import (
	"context"
	"errors"
	"github.com/go-resty/resty/v2"
	mc_launcher "github.com/mrmelon54/mc-launcher"
	"go.uber.org/zap"
	"time"
)

// tokens within this margin of their expiry are renewed
const expiryMargin = 5 * time.Second

const StageAuthentication = "Authentication"

// Engine logs accounts in. Microsoft accounts go through the OAuth, Xbox
// Live, XSTS and Minecraft services; every hop is cached on the account
// until shortly before it expires.
type Engine struct {
	client *resty.Client
	events mc_launcher.Events
	logger *zap.Logger
	now    func() time.Time

	ClientId  string
	Endpoints Endpoints
}

func NewEngine(client *resty.Client, clientId string, events mc_launcher.Events, logger *zap.Logger) *Engine {
	if clientId == "" {
		clientId = DefaultClientId
	}
	if events == nil {
		events = mc_launcher.NopEvents{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client:    client,
		events:    events,
		logger:    logger.Named("auth"),
		now:       time.Now,
		ClientId:  clientId,
		Endpoints: DefaultEndpoints,
	}
}

func (e *Engine) valid(until time.Time) bool {
	return until.Sub(e.now()) >= expiryMargin
}

type step struct {
	label   string
	failure string
	run     func(context.Context, *mc_launcher.Account) error
}

func (e *Engine) steps() []step {
	tokens := func(fn func(context.Context, *mc_launcher.MicrosoftTokens) error) func(context.Context, *mc_launcher.Account) error {
		return func(ctx context.Context, acc *mc_launcher.Account) error {
			return fn(ctx, acc.Microsoft)
		}
	}
	return []step{
		{"Checking access token", "Failed check access token", tokens(e.refreshOAuth)},
		{"Authenticating via Xbox", "Could not authenticate with Xbox Live", tokens(e.xboxLive)},
		{"Obtaining XSTS token", "Could not obtain XSTS token", tokens(e.xsts)},
		{"Getting access token", "Failed to get access token", tokens(e.minecraftLogin)},
		{"Getting profile", "Could not get Minecraft profile", e.profile},
	}
}

// Authenticate makes sure acc holds a usable access token. Offline accounts
// always succeed. A cancelled ctx returns its error without raising an
// error event, any other failure is reported through Events.Error and
// returned as *Error. Progress is reported after each completed step, labelled
// with that step.
func (e *Engine) Authenticate(ctx context.Context, acc *mc_launcher.Account) error {
	if acc.Type == mc_launcher.AccountOffline {
		return nil
	}
	if acc.Microsoft == nil {
		acc.Microsoft = new(mc_launcher.MicrosoftTokens)
	}

	e.events.Stage(StageAuthentication)
	defer e.events.Stage("")

	steps := e.steps()
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.run(ctx, acc)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			msg := s.failure
			var xboxErr *XboxError
			if errors.As(err, &xboxErr) {
				msg = xboxErr.Error()
			}
			e.logger.Warn("authentication failed", zap.String("step", s.label), zap.String("account", acc.Id), zap.Error(err))
			e.events.Error(msg)
			return &Error{Message: msg, Err: err}
		}
		e.events.Progress(float64(i+1)/float64(len(steps)), s.label)
	}
	e.logger.Info("authenticated", zap.String("account", acc.Id), zap.String("name", acc.Name), zap.Time("validUntil", acc.Microsoft.McValidUntil))
	return nil
}
