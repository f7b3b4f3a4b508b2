// Package scatter runs one unit of work per shard concurrently and gathers
// the results in submission order.
//
// Process has three phases. Deposit opens a handle on every shard before
// any work starts; if one shard refuses, the handles already opened are
// closed and nothing runs. Dispatch submits one unit per request to the
// request's pool and waits until every unit has reported. Collect returns
// the results in the order the requests were given, or the first failure in
// that order. Handles are always closed exactly once, and never while the
// unit using them is still running.
package scatter

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"shard-federator/internal/common/errors"
	"shard-federator/internal/common/logging"
	"shard-federator/internal/shard"
)

// Action is the work a unit performs against an open shard handle.
type Action func(ctx context.Context, handle shard.Handle) (interface{}, error)

// Submitter schedules a task. *executor.Pool satisfies it.
type Submitter interface {
	Submit(task func()) error
}

// Request pairs an action with the shard it runs against.
type Request struct {
	Identity string
	Provider shard.HandleProvider
	Pool     Submitter
	Action   Action
}

func (r Request) validate(i int) error {
	switch {
	case r.Provider == nil:
		return errors.ConfigError(fmt.Sprintf("request %d (%s) has no handle provider", i, r.Identity)).WithShard(r.Identity)
	case r.Pool == nil:
		return errors.ConfigError(fmt.Sprintf("request %d (%s) has no executor pool", i, r.Identity)).WithShard(r.Identity)
	case r.Action == nil:
		return errors.ConfigError(fmt.Sprintf("request %d (%s) has no action", i, r.Identity)).WithShard(r.Identity)
	}
	return nil
}

type outcome struct {
	value interface{}
	err   error
}

// Processor executes scatter/gather batches
type Processor struct {
	logger logging.Logger
}

// NewProcessor creates a processor. A nil logger uses the global logger.
func NewProcessor(logger logging.Logger) *Processor {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Processor{
		logger: logger.WithFields(logging.Field{Key: "component", Value: "scatter"}),
	}
}

// Process runs every request and returns their results in request order.
// Any failure fails the whole batch; there are no partial results.
func (p *Processor) Process(ctx context.Context, requests []Request) ([]interface{}, error) {
	if len(requests) == 0 {
		return []interface{}{}, nil
	}
	for i, r := range requests {
		if err := r.validate(i); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, contextError(err)
	}

	ctx = logging.ContextWithBatchID(ctx, uuid.NewString())
	logger := p.logger.WithContext(ctx)

	handles, err := p.deposit(ctx, logger, requests)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)

	outcomes := make([]outcome, len(requests))
	var latch sync.WaitGroup
	latch.Add(len(requests))

	var submitErr error
	for i := range requests {
		if submitErr != nil {
			outcomes[i].err = submitErr
			latch.Done()
			continue
		}

		r, h, slot := requests[i], handles[i], &outcomes[i]
		err := r.Pool.Submit(func() {
			defer latch.Done()
			slot.value, slot.err = runUnit(runCtx, r, h)
		})
		if err != nil {
			submitErr = errors.ConcurrencyError(
				fmt.Sprintf("failed to submit unit for shard %s", r.Identity), err).WithShard(r.Identity)
			outcomes[i].err = submitErr
			latch.Done()
			cancel()
		}
	}

	logger.Debug("Scatter dispatched", logging.Int("units", len(requests)))

	done := make(chan struct{})
	go func() {
		latch.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		p.release(logger, requests, handles)
	case <-ctx.Done():
		cancel()
		go func() {
			<-done
			p.release(logger, requests, handles)
		}()
		err := contextError(ctx.Err())
		logger.Warn("Scatter abandoned before all units finished", logging.Err(err))
		return nil, err
	}

	if submitErr != nil {
		return nil, submitErr
	}

	results := make([]interface{}, len(requests))
	for i, o := range outcomes {
		if o.err != nil {
			id := requests[i].Identity
			logger.Error("Scatter unit failed", o.err, logging.String("shard", id))
			return nil, errors.ExecutionError(
				fmt.Sprintf("unit failed on shard %s", id), o.err).WithShard(id)
		}
		results[i] = o.value
	}
	return results, nil
}

func (p *Processor) deposit(ctx context.Context, logger logging.Logger, requests []Request) ([]shard.Handle, error) {
	handles := make([]shard.Handle, 0, len(requests))

	for _, r := range requests {
		h, err := r.Provider.Open(ctx)
		if err == nil && h == nil {
			err = fmt.Errorf("provider returned no handle")
		}
		if err != nil {
			p.release(logger, requests[:len(handles)], handles)
			logger.Error("Failed to acquire shard handle", err, logging.String("shard", r.Identity))
			return nil, errors.ConnectionError(
				fmt.Sprintf("failed to acquire handle on shard %s", r.Identity), err).WithShard(r.Identity)
		}
		handles = append(handles, h)
	}

	return handles, nil
}

func (p *Processor) release(logger logging.Logger, requests []Request, handles []shard.Handle) {
	for i, h := range handles {
		if err := h.Close(); err != nil {
			logger.Warn("Failed to release shard handle",
				logging.String("shard", requests[i].Identity),
				logging.Err(err),
			)
		}
	}
}

func runUnit(ctx context.Context, r Request, h shard.Handle) (value interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value = nil
			err = fmt.Errorf("unit panicked: %v", rec)
		}
	}()
	return r.Action(ctx, h)
}

func contextError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.TimeoutError("scatter/gather", err)
	}
	return errors.ConcurrencyError("scatter/gather interrupted", err)
}
