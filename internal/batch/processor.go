package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Kamar-Folarin/starred-sync/internal/config"
)

// Processor splits items into batches and processes them on a bounded worker pool,
// retrying a failed batch up to config.MaxRetries times.
type Processor[T any] struct {
	config *config.BatchConfig
	clock  clockwork.Clock
}

// NewProcessor creates a new batch processor
func NewProcessor[T any](cfg *config.BatchConfig, clock clockwork.Clock) *Processor[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Processor[T]{
		config: cfg,
		clock:  clock,
	}
}

// ProcessItems processes items in batches. processFn must be safe to call concurrently and
// to call again for a batch that partially succeeded. The first batch error is returned
// after all started batches finish.
func (p *Processor[T]) ProcessItems(ctx context.Context, items []T, processFn func(ctx context.Context, batch []T) error) error {
	totalItems := len(items)
	if totalItems == 0 {
		return nil
	}

	batchSize := p.config.Size
	if batchSize <= 0 {
		batchSize = 100 // Default batch size
	}
	workers := p.config.Workers
	if workers <= 0 {
		workers = 1
	}

	totalBatches := (totalItems + batchSize - 1) / batchSize

	workerChan := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var processErr error
	var mu sync.Mutex

dispatch:
	for i := 0; i < totalBatches; i++ {
		select {
		case <-ctx.Done():
			mu.Lock()
			if processErr == nil {
				processErr = ctx.Err()
			}
			mu.Unlock()
			break dispatch
		case workerChan <- struct{}{}:
			wg.Add(1)
			go func(batchNum int) {
				defer wg.Done()
				defer func() { <-workerChan }()

				start := batchNum * batchSize
				end := min(start+batchSize, totalItems)

				if err := p.processBatchWithRetry(ctx, items[start:end], processFn); err != nil {
					mu.Lock()
					if processErr == nil {
						processErr = err
					}
					mu.Unlock()
				}
			}(i)
		}
	}

	wg.Wait()
	return processErr
}

// processBatchWithRetry processes a batch with retry logic
func (p *Processor[T]) processBatchWithRetry(ctx context.Context, batch []T, processFn func(ctx context.Context, batch []T) error) error {
	var lastErr error
	for retry := 0; retry <= p.config.MaxRetries; retry++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := processFn(ctx, batch)
		if err == nil {
			return nil
		}
		lastErr = err

		if retry < p.config.MaxRetries && p.config.BatchDelay > 0 {
			backoff := p.config.BatchDelay * time.Duration(retry+1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.clock.After(backoff):
			}
		}
	}

	return fmt.Errorf("failed to process batch after %d retries: %w", p.config.MaxRetries, lastErr)
}
