package orchestrator

import (
	"context"
)

// worker executes commands one at a time and handles platform events
// between them.
func (o *Orchestrator) worker(cmds <-chan command, quit <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)
	platformEvents := o.platform.Events()
	for {
		select {
		case cmd := <-cmds:
			cmd.done <- cmd.fn()
		case ev := <-platformEvents:
			o.handlePlatformEvent(ev)
		case <-quit:
			return
		}
	}
}

// do runs fn on the worker and waits for its result. A canceled ctx stops
// the wait but not fn once the worker picked it up.
func (o *Orchestrator) do(ctx context.Context, fn func() error) error {
	o.lifeMu.Lock()
	cmds, exited := o.cmds, o.exited
	o.lifeMu.Unlock()
	if cmds == nil {
		return ErrNotStarted
	}

	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case cmds <- cmd:
	case <-exited:
		return ErrNotStarted
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
