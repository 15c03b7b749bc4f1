package discord

import (
	"context"
	"sync"

	"github.com/oklahomer/go-kasumi/logger"
	"github.com/oklog/ulid/v2"
)

// Pending tracks one asynchronous instruction until its completion is signaled on the Host.
type Pending struct {
	// ID correlates log lines of one instruction.
	ID string

	// Action is the instruction this Pending belongs to.
	Action Action

	mu        sync.Mutex
	done      chan struct{}
	completed bool
	err       error
}

func newPending(action Action) *Pending {
	return &Pending{
		ID:     ulid.Make().String(),
		Action: action,
		done:   make(chan struct{}),
	}
}

// complete is normally called on the Host loop. Only the first call has any effect.
func (p *Pending) complete(err error) {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		logger.Warnf("Instruction %s (%s) was already completed. Ignoring: %+v", p.ID, p.Action, err)
		return
	}
	p.completed = true
	p.err = err
	close(p.done)
	p.mu.Unlock()

	if err != nil {
		logger.Debugf("Instruction %s (%s) failed: %+v", p.ID, p.Action, err)
	} else {
		logger.Debugf("Instruction %s (%s) completed", p.ID, p.Action)
	}
}

// Done is closed once the instruction completes, successfully or not.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the failure of a completed instruction. It returns nil until Done is closed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the instruction completes or ctx is done.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
