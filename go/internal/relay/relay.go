// Package relay mirrors field of play notifications to NATS JetStream and
// feeds commands published on NATS back to the platforms.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/fieldofplay/go/internal/fop"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/rs/zerolog/log"
)

// DefaultOrigin tags commands received without an origin token.
const DefaultOrigin = "nats"

var (
	ErrRetryable    = errors.New("retryable")
	ErrUnroutable   = errors.New("no platform for subject")
	ErrMalformedCmd = errors.New("malformed command message")
)

const resubscribeDelay = 100 * time.Millisecond

// IsRetryable reports whether a command message should be redelivered.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}

// Platforms resolves platform names to their field of play.
type Platforms interface {
	Platform(name string) (*fop.FieldOfPlay, error)
	PlatformNames() []string
}

// Relay connects the platform buses to a message broker.
type Relay struct {
	platforms     Platforms
	pub           Publisher
	eventPrefix   string
	commandPrefix string
	timeout       time.Duration
	byToken       map[string]string
}

// New creates a relay for every platform of the competition.
func New(platforms Platforms, pub Publisher, cfg JetStreamConfig) *Relay {
	r := &Relay{
		platforms:     platforms,
		pub:           pub,
		eventPrefix:   cfg.EventPrefix,
		commandPrefix: cfg.CommandPrefix,
		timeout:       cfg.PublishTimeout,
		byToken:       make(map[string]string),
	}
	if r.timeout <= 0 {
		r.timeout = DefaultJetStreamConfig().PublishTimeout
	}
	for _, name := range platforms.PlatformNames() {
		r.byToken[SubjectToken(name)] = name
	}
	return r
}

// Run forwards notifications of every platform until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, name := range r.platforms.PlatformNames() {
		f, err := r.platforms.Platform(name)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.forward(ctx, f)
		}()
	}
	wg.Wait()
	return nil
}

// forward publishes what the bus delivers. The relay subscribes with an empty
// token so it also sees notifications caused by its own commands.
func (r *Relay) forward(ctx context.Context, f *fop.FieldOfPlay) {
	for {
		sub := f.Bus().Subscribe("")
		r.drain(ctx, sub.C())
		f.Bus().Unsubscribe(sub)

		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
		}
		log.Warn().Str("platform", f.Platform()).Msg("relay subscription closed, subscribing again")
	}
}

func (r *Relay) drain(ctx context.Context, ch <-chan events.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			if err := r.publish(ctx, n); err != nil {
				log.Error().
					Err(err).
					Str("platform", n.Platform).
					Str("type", string(n.Type)).
					Msg("failed to relay notification")
			}
		}
	}
}

func (r *Relay) publish(ctx context.Context, n events.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.pub.Publish(ctx, EventSubject(r.eventPrefix, n.Platform, n.Type), n.ID, map[string]string{
		"Notification-Type": string(n.Type),
		"Platform":          n.Platform,
	}, data)
}

// HandleCommand runs a command message received on subject. Commands the
// field of play refuses are logged and count as handled.
func (r *Relay) HandleCommand(ctx context.Context, subject string, data []byte) error {
	token, ok := platformToken(r.commandPrefix, subject)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnroutable, subject)
	}
	platform, ok := r.byToken[token]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnroutable, subject)
	}
	f, err := r.platforms.Platform(platform)
	if err != nil {
		return err
	}

	var env events.CommandEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedCmd, err)
	}
	if env.Platform != "" && env.Platform != platform {
		return fmt.Errorf("%w: addressed to %s on subject of %s", ErrMalformedCmd, env.Platform, platform)
	}
	cmd, err := events.DecodeCommand(&env)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedCmd, err)
	}

	origin := env.Origin
	if origin == "" {
		origin = DefaultOrigin
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	err = f.Do(ctx, origin, cmd)
	switch {
	case err == nil:
		log.Debug().
			Str("platform", platform).
			Str("command", string(env.Type)).
			Msg("remote command applied")
		return nil
	case errors.Is(err, fop.ErrStopped), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrRetryable, err)
	default:
		log.Warn().
			Err(err).
			Str("platform", platform).
			Str("command", string(env.Type)).
			Msg("remote command rejected")
		return nil
	}
}

// Serve relays notifications to js and runs the commands it receives until
// ctx is cancelled.
func (r *Relay) Serve(ctx context.Context, js *JetStream) error {
	var (
		wg      sync.WaitGroup
		consErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		consErr = js.ConsumeCommands(ctx, r.HandleCommand)
	}()
	runErr := r.Run(ctx)
	wg.Wait()
	return errors.Join(runErr, consErr)
}
