package sched

import (
	"context"

	"asyncsql/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Housekeeper is the engine surface the janitor drives.
type Housekeeper interface {
	EvictExpired() int
	PublishMetrics()
}

// Janitor evicts done tasks nobody fetched within the TTL and refreshes the
// queue and pool gauges.
type Janitor struct {
	eng Housekeeper
	log *zerolog.Logger
}

func NewJanitor(eng Housekeeper, logger *zerolog.Logger) *Janitor {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Janitor{eng: eng, log: logging.Component(logger, "janitor")}
}

func (j *Janitor) Name() string { return "janitor" }

func (j *Janitor) RunOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := j.eng.EvictExpired()
	j.eng.PublishMetrics()
	j.log.Debug().Int("evicted", n).Msg("janitor pass")
	return nil
}
