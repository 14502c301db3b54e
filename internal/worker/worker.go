// Package worker consumes external user records from the feed and drives
// bulk imports through the bootstrap service.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tenantgraph/internal/domain"
)

// Importer is the slice of the bootstrap service the worker needs.
type Importer interface {
	ImportBulkUsers(ctx context.Context, users []domain.User) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Worker batches incoming user records by count and interval and imports
// each batch in one transaction. A batch that loses the concurrent
// bootstrap race is retried with backoff; the retry takes the fast path.
type Worker struct {
	importer      Importer
	sub           Subscriber
	channel       string
	batchSize     int
	flushInterval time.Duration
	maxRetries    uint64

	// initial backoff interval for retrying a lost bootstrap race
	backoffInterval time.Duration
}

func New(importer Importer, sub Subscriber, channel string, batchSize int, flushInterval time.Duration) *Worker {
	return &Worker{
		importer:      importer,
		sub:           sub,
		channel:       channel,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		maxRetries:    5,

		backoffInterval: 500 * time.Millisecond,
	}
}

// Run consumes the feed until ctx is done or the feed closes. Any pending
// batch is flushed before returning.
func (w *Worker) Run(ctx context.Context) error {
	msgs, cleanup, err := w.sub.Subscribe(ctx, w.channel)
	if err != nil {
		return fmt.Errorf("worker.Run: %w", err)
	}
	defer cleanup()

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	var batch []domain.User

	for {
		select {
		case <-ctx.Done():
			// Flush what we have; the parent ctx is already cancelled.
			return w.flush(context.WithoutCancel(ctx), batch)

		case msg, ok := <-msgs:
			if !ok {
				return w.flush(ctx, batch)
			}

			var user domain.User
			if err := json.Unmarshal(msg, &user); err != nil {
				log.Warn().Err(err).Msg("dropping malformed user record")
				continue
			}

			batch = append(batch, user)
			if len(batch) >= w.batchSize {
				if err := w.flush(ctx, batch); err != nil {
					return err
				}
				batch = nil
			}

		case <-ticker.C:
			if err := w.flush(ctx, batch); err != nil {
				return err
			}
			batch = nil
		}
	}
}

func (w *Worker) flush(ctx context.Context, users []domain.User) error {
	if len(users) == 0 {
		return nil
	}

	op := func() error {
		err := w.importer.ImportBulkUsers(ctx, users)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrConflict) {
			log.Info().Int("num_users", len(users)).
				Msg("bulk import lost bootstrap race, retrying")
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.backoffInterval

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, w.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("worker.flush: %w", err)
	}

	log.Info().Int("num_users", len(users)).Msg("imported user batch")
	return nil
}
