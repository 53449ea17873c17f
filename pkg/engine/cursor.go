package engine

import (
	"context"
	"errors"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/engine/executor"
	"github.com/grafana/vexec/pkg/errs"
)

// Cursor drives an operator tree. Batches are produced on the calling
// goroutine, one per call to Next; nothing runs in the background. A cursor
// is not safe for concurrent use.
//
// To stop a pipeline early, stop calling Next and call Close.
type Cursor struct {
	engine *Engine
	root   executor.Operator
	logger log.Logger

	span    trace.Span
	start   time.Time
	opened  bool
	closed  bool
	status  string
	rows    int
	batches int
}

func newCursor(e *Engine, root executor.Operator) *Cursor {
	return &Cursor{
		engine: e,
		root:   root,
		logger: log.With(e.logger, "root", root.Schema().String()),
	}
}

// Schema returns the schema of the batches returned by Next.
func (c *Cursor) Schema() *columnar.Schema { return c.root.Schema() }

func (c *Cursor) context(ctx context.Context) context.Context {
	return executor.WithResources(ctx, c.engine.Resources())
}

// Open opens the operator tree.
func (c *Cursor) Open(ctx context.Context) error {
	if c.opened || c.closed {
		return errs.Newf(errs.ErrInvalidState, "cursor has already been opened")
	}
	c.opened = true
	c.start = time.Now()

	ctx, c.span = tracer.Start(ctx, "Cursor")
	if err := c.root.Open(c.context(ctx)); err != nil {
		c.finish(statusFailure, err)
		return err
	}
	level.Debug(c.logger).Log("msg", "opened cursor")
	return nil
}

// Next returns the next batch of the root operator, or executor.EOF once the
// tree is exhausted. The caller owns the returned batch and must release it.
// Next returns an error wrapping [errs.ErrSchemaMismatch] if the root
// produces a batch that does not match its schema.
func (c *Cursor) Next(ctx context.Context) (*columnar.Batch, error) {
	if !c.opened || c.closed {
		return nil, errs.Newf(errs.ErrInvalidState, "next called on cursor that is not open")
	}

	batch, err := c.root.Next(c.context(ctx))
	if errors.Is(err, executor.EOF) {
		c.finish(statusSuccess, nil)
		return nil, executor.EOF
	} else if err != nil {
		c.finish(statusFailure, err)
		return nil, err
	}

	if err := c.validate(batch); err != nil {
		batch.Release()
		c.finish(statusFailure, err)
		return nil, err
	}
	c.rows += batch.NumRows()
	c.batches++
	return batch, nil
}

func (c *Cursor) validate(batch *columnar.Batch) error {
	if !batch.Schema().Equal(c.root.Schema()) {
		return errs.Newf(errs.ErrSchemaMismatch, "root produced batch with schema %s, expected %s", batch.Schema(), c.root.Schema())
	}
	return batch.Validate()
}

// Drain calls fn for every remaining batch. Batches are released after fn
// returns. Drain stops at the first error.
func (c *Cursor) Drain(ctx context.Context, fn func(*columnar.Batch) error) error {
	for {
		batch, err := c.Next(ctx)
		if errors.Is(err, executor.EOF) {
			return nil
		} else if err != nil {
			return err
		}
		err = fn(batch)
		batch.Release()
		if err != nil {
			return err
		}
	}
}

// Collect returns all remaining batches. The caller must release them.
func (c *Cursor) Collect(ctx context.Context) ([]*columnar.Batch, error) {
	var out []*columnar.Batch
	for {
		batch, err := c.Next(ctx)
		if errors.Is(err, executor.EOF) {
			return out, nil
		} else if err != nil {
			for _, b := range out {
				b.Release()
			}
			return nil, err
		}
		out = append(out, batch)
	}
}

// Close closes the operator tree and releases its resources. Close is
// idempotent.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	err := c.root.Close()
	if c.opened {
		c.finish(statusCanceled, nil)
		c.span.SetAttributes(
			attribute.Int("rows", c.rows),
			attribute.Int("batches", c.batches),
		)
		c.span.End()
	}
	level.Debug(c.logger).Log(
		"msg", "closed cursor",
		"status", c.status,
		"rows", c.rows,
		"batches", c.batches,
		"duration", time.Since(c.start),
	)
	return err
}

// finish records the final status of the pipeline. Only the first status is
// recorded.
func (c *Cursor) finish(status string, err error) {
	if c.status != "" {
		return
	}
	c.status = status
	c.engine.metrics.pipelines.WithLabelValues(status).Inc()

	switch status {
	case statusFailure:
		level.Error(c.logger).Log("msg", "pipeline failed", "err", err, "rows", c.rows, "batches", c.batches)
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	case statusSuccess:
		level.Debug(c.logger).Log("msg", "pipeline exhausted", "rows", c.rows, "batches", c.batches, "duration", time.Since(c.start))
		c.span.SetStatus(codes.Ok, "")
	}
}
