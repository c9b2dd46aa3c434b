package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Pending is the eventual result of one bridge operation. It is completed
// exactly once, by the bridge.
type Pending[T any] struct {
	id   string
	op   Op
	done chan struct{}
	once sync.Once

	value T
	err   error

	onDone func(error)
}

func newPending[T any](op Op) *Pending[T] {
	return &Pending[T]{
		id:   uuid.NewString(),
		op:   op,
		done: make(chan struct{}),
	}
}

func (p *Pending[T]) ID() string { return p.id }
func (p *Pending[T]) Op() Op     { return p.op }

// Done is closed once the operation completed.
func (p *Pending[T]) Done() <-chan struct{} { return p.done }

// Await blocks until the operation completes or ctx ends. In the latter case
// the error matches ErrOutcomeUnknown and the operation keeps running.
func (p *Pending[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	default:
	}
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, &OutcomeUnknownError{Op: p.op, ID: p.id, Err: ctx.Err()}
	}
}

func (p *Pending[T]) complete(value T, err error) {
	p.once.Do(func() {
		p.value, p.err = value, err
		if p.onDone != nil {
			p.onDone(err)
		}
		close(p.done)
	})
}

func (p *Pending[T]) fail(err error) {
	var zero T
	p.complete(zero, err)
}
