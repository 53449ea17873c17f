// Package executor implements the relational operators of a query pipeline
// and the pull protocol that connects them.
//
// Operators form a tree. The root is pulled by its caller with [Operator.Next]
// and pulls its children in turn, so data flows up the tree one batch at a
// time while control flows down. Nothing runs in the background: every
// batch is produced within the Next call that returns it.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/grafana/dskit/multierror"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/errs"
)

// EOF is returned by [Operator.Next] and [Source.Read] once all batches have
// been produced.
var EOF = errors.New("pipeline exhausted") //nolint:revive,staticcheck

// Operator is a node of an operator tree.
//
// An operator moves through the states Uninitialized, Open, Running and
// Closed. Open must be called exactly once before Next; Next may be called
// until it returns EOF or an error. Close may be called at any time, any
// number of times, and releases every resource of the operator and its
// children.
//
// Batches returned by Next are owned by the caller, which must release them.
type Operator interface {
	// Schema returns the schema of every batch produced by Next. It is known
	// from construction.
	Schema() *columnar.Schema

	// Open acquires the resources of the operator and opens its children.
	// Open returns an error wrapping [errs.ErrOperatorInit] if the operator is
	// misconfigured for the schemas of its children. If Open fails, every
	// child that was opened is closed again and the operator ends up Closed.
	Open(ctx context.Context) error

	// Next returns the next batch, or EOF when the operator is exhausted. A
	// batch with zero rows is not exhaustion.
	Next(ctx context.Context) (*columnar.Batch, error)

	// Close releases all resources. Close is idempotent.
	Close() error
}

type state int

const (
	stateUninitialized state = iota
	stateOpen
	stateRunning
	stateClosed
)

var stateStrings = map[state]string{
	stateUninitialized: "uninitialized",
	stateOpen:          "open",
	stateRunning:       "running",
	stateClosed:        "closed",
}

func (s state) String() string {
	if str, ok := stateStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("state(%d)", s)
}

// lifecycle tracks the state of an operator and its children. Operators
// embed it to share the protocol checks.
type lifecycle struct {
	name     string
	state    state
	children []Operator
}

func newLifecycle(name string, children ...Operator) lifecycle {
	return lifecycle{name: name, children: children}
}

// open transitions to Open after opening all children in order. If a child
// fails, all children are closed.
func (l *lifecycle) open(ctx context.Context) error {
	if l.state != stateUninitialized {
		return errs.Newf(errs.ErrInvalidState, "%s: cannot open operator in state %s", l.name, l.state)
	}
	for _, child := range l.children {
		if err := child.Open(ctx); err != nil {
			l.fail()
			return err
		}
	}
	l.state = stateOpen
	return nil
}

// fail closes the children after a failed Open.
func (l *lifecycle) fail() {
	_ = l.closeChildren()
	l.state = stateClosed
}

// initError returns an [errs.ErrOperatorInit] error after closing the
// children.
func (l *lifecycle) initError(format string, args ...any) error {
	l.fail()
	return errs.Newf(errs.ErrOperatorInit, "%s: %s", l.name, fmt.Sprintf(format, args...))
}

// next checks that Next may be called and transitions to Running.
func (l *lifecycle) next() error {
	switch l.state {
	case stateOpen, stateRunning:
		l.state = stateRunning
		return nil
	}
	return errs.Newf(errs.ErrInvalidState, "%s: next called on operator in state %s", l.name, l.state)
}

// close transitions to Closed and closes the children. It reports false if
// the operator was already closed.
func (l *lifecycle) close() (bool, error) {
	if l.state == stateClosed {
		return false, nil
	}
	l.state = stateClosed
	return true, l.closeChildren()
}

func (l *lifecycle) closeChildren() error {
	merr := multierror.New()
	for _, child := range l.children {
		merr.Add(child.Close())
	}
	return merr.Err()
}

// drain reads all remaining batches of op, calling fn for each. Batches are
// released after fn returns.
func drain(ctx context.Context, op Operator, fn func(*columnar.Batch) error) error {
	for {
		batch, err := op.Next(ctx)
		if errors.Is(err, EOF) {
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
