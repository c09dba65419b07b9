// Package driver runs the plant side of the closed loop: it steps the
// plant at a fixed period on its own goroutine, deposits the sensed state
// into the loop's mailbox, and feeds published force commands back into
// the plant. It stands in for the external transport and motor hardware.
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/pendctl/internal/motor"
	"github.com/san-kum/pendctl/internal/rtloop"
)

type Driver struct {
	plant  motor.Plant
	period time.Duration
	log    zerolog.Logger
}

func New(plant motor.Plant, period time.Duration, log zerolog.Logger) (*Driver, error) {
	if period <= 0 {
		return nil, fmt.Errorf("driver: update period must be positive, got %v", period)
	}
	return &Driver{
		plant:  plant,
		period: period,
		log:    log,
	}, nil
}

// Publish feeds a force command into the plant. Implements
// rtloop.Publisher; called from the control loop goroutine.
func (d *Driver) Publish(force float64) {
	d.plant.UpdateCommand(force)
}

// Run steps the plant at the update period until ctx is canceled. Each
// step overwrites the mailbox slot; if the control loop lags, it sees
// only the freshest state.
func (d *Driver) Run(ctx context.Context, mailbox *rtloop.Mailbox) {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	d.log.Debug().Dur("period", d.period).Msg("driver started")
	for {
		select {
		case <-ctx.Done():
			d.log.Debug().Msg("driver stopped")
			return
		case <-ticker.C:
			d.plant.Step()
			mailbox.Put(d.plant.State())
		}
	}
}
