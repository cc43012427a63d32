package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Commander is the transport surface for operator intents.
type Commander interface {
	StartListening(ctx context.Context, userID string) error
	StopListening(ctx context.Context, userID string) error
}

// Poller triggers an immediate fetch after a successful command so the
// visible status updates without waiting a full interval.
type Poller interface {
	ForcePoll()
}

// Dispatcher translates start/stop listening intents into transport calls.
// Commands are independent per device and are not deduplicated or queued;
// the service is the source of truth.
type Dispatcher struct {
	commander Commander
	poller    Poller
	log       zerolog.Logger
}

func New(commander Commander, poller Poller, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		commander: commander,
		poller:    poller,
		log:       log.With().Str("component", "dispatch").Logger(),
	}
}

// StartListening asks the service to open a listening session for the
// device. On failure the error is surfaced and the snapshot is left
// untouched; the device's displayed status is not assumed to have changed.
func (d *Dispatcher) StartListening(ctx context.Context, userID string) error {
	return d.dispatch(ctx, "start_listening", userID, d.commander.StartListening)
}

// StopListening asks the service to end the device's listening session.
func (d *Dispatcher) StopListening(ctx context.Context, userID string) error {
	return d.dispatch(ctx, "stop_listening", userID, d.commander.StopListening)
}

func (d *Dispatcher) dispatch(ctx context.Context, command, userID string, call func(context.Context, string) error) error {
	commandID := uuid.NewString()
	log := d.log.With().
		Str("command", command).
		Str("command_id", commandID).
		Str("user_id", userID).
		Logger()

	if err := call(ctx, userID); err != nil {
		log.Error().Err(err).Msg("command failed")
		return fmt.Errorf("%s %s: %w", command, userID, err)
	}

	log.Info().Msg("command accepted")
	d.poller.ForcePoll()

	return nil
}
