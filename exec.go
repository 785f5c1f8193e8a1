package flownet

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// An Executable is a compiled process network. It owns the runtime
// channels and the per-process goroutines and exposes the run
// lifecycle: Run, Wait, Pause, Stop. Once stopped, an executable cannot
// be restarted; compile the net again instead.
type Executable struct {
	net    *Net
	procs  []*rtProc
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      runState
	started    bool
	continuous bool
	pending    int
	time       int
}

// Run starts executing the network under the given condition.
//
// With RunSteps, every process executes the requested number of
// timesteps; Run blocks until completion when the condition is
// blocking, otherwise it returns immediately and Wait collects
// completion. With RunContinuous, processes run freely until Pause or
// Stop; Run returns immediately.
func (e *Executable) Run(cond RunCondition) error {
	e.mu.Lock()
	switch e.state {
	case stateStopped:
		e.mu.Unlock()
		return errors.New("executable is stopped")
	case stateRunning:
		e.mu.Unlock()
		return errors.New("executable is already running")
	}
	if !e.started {
		e.startProcs()
	}
	var blocking bool
	switch c := cond.(type) {
	case RunSteps:
		if c.Steps <= 0 {
			e.mu.Unlock()
			return errors.Errorf("invalid step count %d", c.Steps)
		}
		if err := e.dispatch(command{kind: cmdSteps, steps: c.Steps}); err != nil {
			e.mu.Unlock()
			return err
		}
		e.state = stateRunning
		e.continuous = false
		e.pending = c.Steps
		blocking = c.Blocking
	case RunContinuous:
		if err := e.dispatch(command{kind: cmdContinuous}); err != nil {
			e.mu.Unlock()
			return err
		}
		e.state = stateRunning
		e.continuous = true
	default:
		e.mu.Unlock()
		return errors.Errorf("unknown run condition %T", cond)
	}
	e.mu.Unlock()
	if blocking {
		return e.Wait()
	}
	return nil
}

// Wait blocks until every process completed the steps requested by the
// last bounded Run and returns the first process error, if any. A step
// error in one process tears down the network so that peers starved of
// input unblock; the executable is stopped afterwards. Wait returns
// immediately when the network is not running; it cannot be used with
// RunContinuous.
func (e *Executable) Wait() error {
	e.mu.Lock()
	if e.state != stateRunning {
		e.mu.Unlock()
		return nil
	}
	if e.continuous {
		e.mu.Unlock()
		return errors.New("wait requires a bounded run; use Pause or Stop")
	}
	steps := e.pending
	e.mu.Unlock()

	// Acks are collected concurrently: after one process fails, its
	// peers may be blocked in Recv and will only ack or exit once the
	// network is torn down.
	results := make(chan error, len(e.procs))
	for _, rp := range e.procs {
		go func(rp *rtProc) {
			select {
			case err := <-rp.ack:
				results <- err
			case <-rp.exited:
				switch {
				case rp.err != nil:
					results <- rp.err
				case e.ctx.Err() != nil:
					results <- nil
				default:
					results <- &ChannelError{Reason: "process " + rp.proc.name + " terminated"}
				}
			}
		}(rp)
	}
	var first error
	for range e.procs {
		if err := <-results; err != nil && first == nil {
			first = err
			e.cancel()
		}
	}

	e.mu.Lock()
	switch {
	case first != nil:
		e.state = stateStopped
	case e.state == stateRunning:
		e.state = statePaused
		e.time += steps
	}
	e.pending = 0
	e.mu.Unlock()
	if first != nil {
		e.wg.Wait()
	}
	return first
}

// Pause asks every process to stop stepping. It only applies to a
// continuous run and takes effect between timesteps: a process blocked
// mid-step finishes that step first.
func (e *Executable) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateRunning || !e.continuous {
		return errors.New("pause requires a continuous run")
	}
	err := e.dispatch(command{kind: cmdPause})
	e.state = statePaused
	return err
}

// Stop tears down the network: channels are released, process
// goroutines exit, and pending sends and receives fail with a
// ChannelError instead of blocking. Stop is idempotent and returns the
// first non-teardown process error.
func (e *Executable) Stop() error {
	e.mu.Lock()
	if e.state == stateStopped {
		e.mu.Unlock()
		return nil
	}
	e.state = stateStopped
	started := e.started
	e.mu.Unlock()

	e.cancel()
	if started {
		e.wg.Wait()
	}
	var first error
	for _, rp := range e.procs {
		if rp.err != nil {
			first = rp.err
			break
		}
	}
	e.net.log.Info().Msg("network stopped")
	return first
}

// Time returns the number of completed bounded-run timesteps.
func (e *Executable) Time() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.time
}

// VarValue returns a copy of the current value of a process variable.
// Values may only be read while execution is paused, stopped or not yet
// started.
func (e *Executable) VarValue(v *Var) (*Tensor, error) {
	st, err := e.varState(v)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.val.Clone(), nil
}

// SetVar replaces the current value of a process variable. Values may
// only be written while execution is paused, stopped or not yet
// started.
func (e *Executable) SetVar(v *Var, t *Tensor) error {
	if !t.Shape().Equal(v.shape) {
		return &ShapeError{Op: "set var " + v.name,
			Reason: "tensor shape " + t.Shape().String() + " does not match var shape " + v.shape.String()}
	}
	st, err := e.varState(v)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.val = t.Clone()
	return nil
}

func (e *Executable) varState(v *Var) (*varState, error) {
	e.mu.Lock()
	if e.state == stateRunning {
		e.mu.Unlock()
		return nil, errors.New("variable access requires a paused or stopped network")
	}
	e.mu.Unlock()
	for _, rp := range e.procs {
		if rp.proc == v.proc {
			if st, ok := rp.vars[v.name]; ok {
				return st, nil
			}
		}
	}
	return nil, errors.Errorf("var %s.%s is not part of this executable", v.proc.name, v.name)
}

// startProcs launches the per-process goroutines. Called with e.mu
// held, once.
func (e *Executable) startProcs() {
	e.started = true
	e.wg.Add(len(e.procs))
	for _, rp := range e.procs {
		go rp.loop()
	}
	e.net.log.Info().Int("processes", len(e.procs)).Msg("network started")
}

// dispatch delivers a command to every live process. A process that
// already exited fails the dispatch, so its error surfaces on the next
// lifecycle call instead of lingering until Stop. Called with e.mu
// held.
func (e *Executable) dispatch(c command) error {
	for _, rp := range e.procs {
		// The cmd channel is buffered, so a dead process must be
		// detected before the send or the command would be silently
		// queued to no one.
		select {
		case <-rp.exited:
			return e.deadProc(rp)
		default:
		}
		select {
		case rp.cmd <- c:
		case <-rp.exited:
			return e.deadProc(rp)
		}
	}
	return nil
}

func (e *Executable) deadProc(rp *rtProc) error {
	if rp.err != nil {
		return errors.Wrapf(rp.err, "process %s has failed", rp.proc.name)
	}
	return &ChannelError{Reason: "process " + rp.proc.name + " terminated"}
}
