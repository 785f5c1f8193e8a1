package flownet

import (
	"sync"

	"github.com/pkg/errors"
)

type runState int

const (
	stateReady runState = iota
	stateRunning
	statePaused
	stateStopped
)

type cmdKind int

const (
	cmdSteps cmdKind = iota
	cmdContinuous
	cmdPause
)

type command struct {
	kind  cmdKind
	steps int
}

// A link is one compiled edge: the buffered channel carrying tensors
// from a real output port to one delivery point of an input channel.
type link struct {
	ch chan *Tensor
}

// outlet is the send side shared by all Outlet handles of one output
// port: the compiled links fanning out from it.
type outlet struct {
	port  *OutPort
	links []*link
}

// A recvNode receives one contributor's value for the current timestep.
type recvNode interface {
	gather(e *Executable) (*Tensor, error)
}

// leafRecv receives from a single compiled edge and exposes the shape
// recorded at the connection boundary.
type leafRecv struct {
	ln    *link
	shape Shape
}

func (l *leafRecv) gather(e *Executable) (*Tensor, error) {
	select {
	case t := <-l.ln.ch:
		return t.withShape(l.shape), nil
	case <-e.ctx.Done():
		return nil, &ChannelError{Reason: "channel torn down"}
	}
}

// concatRecv assembles one tensor from its member contributors,
// concatenated along axis in member order.
type concatRecv struct {
	members []recvNode
	axis    int
	shape   Shape
}

func (c *concatRecv) gather(e *Executable) (*Tensor, error) {
	ts := make([]*Tensor, len(c.members))
	for i, m := range c.members {
		t, err := m.gather(e)
		if err != nil {
			return nil, err
		}
		ts[i] = t
	}
	// Row-major placement: every member shares the dimensions outside
	// the concat axis, so each one contributes a contiguous block per
	// outer index.
	first := ts[0].Shape()
	outer, tail := 1, 1
	for _, d := range first[:c.axis] {
		outer *= d
	}
	for _, d := range first[c.axis+1:] {
		tail *= d
	}
	rowLen := 0
	for _, t := range ts {
		rowLen += t.Shape()[c.axis] * tail
	}
	data := make([]float64, outer*rowLen)
	off := 0
	for _, t := range ts {
		block := t.Shape()[c.axis] * tail
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(data[o*rowLen+off:o*rowLen+off+block], src[o*block:(o+1)*block])
		}
		off += block
	}
	return &Tensor{shape: c.shape.clone(), data: data}, nil
}

// An Inlet is the runtime receive endpoint of an input port: the single
// channel aggregating all inbound edges. Models obtain inlets from
// their Socket.
type Inlet struct {
	e     *Executable
	rp    *rtProc
	port  *InPort
	feeds []recvNode
}

// Recv blocks until every contributor delivered its value for the
// current timestep, combines them with the port's reduction operation
// and returns the result shaped like the port. Contributors may arrive
// in any order. Recv fails with a ChannelError when the executable is
// torn down or the port has no inbound connection.
func (in *Inlet) Recv() (*Tensor, error) {
	if len(in.feeds) == 0 {
		return nil, &ChannelError{Port: portLabel(in.port), Reason: "no inbound connection"}
	}
	acc, err := in.feeds[0].gather(in.e)
	if err != nil {
		return nil, err
	}
	for _, f := range in.feeds[1:] {
		t, err := f.gather(in.e)
		if err != nil {
			return nil, err
		}
		in.port.reduce.apply(acc.Data(), t.Data())
		in.e.net.metrics.reduce(in.rp.proc.name)
	}
	return acc.withShape(in.port.shape), nil
}

// An Outlet is the runtime send endpoint of an output port. Models
// obtain outlets from their Socket.
type Outlet struct {
	e   *Executable
	rp  *rtProc
	out *outlet
}

// Send delivers t to every connected input. Each destination receives
// its own copy; the send does not wait for downstream reduction. Send
// fails with a ShapeError if t does not match the port shape and with a
// ChannelError when the executable is torn down.
func (o *Outlet) Send(t *Tensor) error {
	if t == nil {
		return &ChannelError{Port: portLabel(o.out.port), Reason: "nil tensor"}
	}
	if !t.Shape().Equal(o.out.port.shape) {
		return &ShapeError{Op: "send on " + portLabel(o.out.port),
			Reason: "tensor shape " + t.Shape().String() + " does not match port shape " + o.out.port.shape.String()}
	}
	for _, ln := range o.out.links {
		select {
		case ln.ch <- t.Clone():
		case <-o.e.ctx.Done():
			return &ChannelError{Port: portLabel(o.out.port), Reason: "channel torn down"}
		}
	}
	o.e.net.metrics.send(o.rp.proc.name)
	return nil
}

// varState is the runtime backing of one Var.
type varState struct {
	mu  sync.Mutex
	val *Tensor
}

// A VarRef is a model's handle on one of its process's variables.
type VarRef struct {
	st    *varState
	shape Shape
}

// Get returns a copy of the current value.
func (v *VarRef) Get() *Tensor {
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	return v.st.val.Clone()
}

// Set replaces the current value. The tensor shape must match the
// variable shape.
func (v *VarRef) Set(t *Tensor) error {
	if !t.Shape().Equal(v.shape) {
		return &ShapeError{Op: "set var",
			Reason: "tensor shape " + t.Shape().String() + " does not match var shape " + v.shape.String()}
	}
	v.st.mu.Lock()
	defer v.st.mu.Unlock()
	v.st.val = t.Clone()
	return nil
}

// A Socket hands a mounting model its process's runtime endpoints. The
// lookup methods panic on unknown names: a model asking for a port its
// process does not declare is a programming error.
type Socket struct {
	rp *rtProc
}

// In returns the receive endpoint of the named input port.
func (s *Socket) In(name string) *Inlet {
	in, ok := s.rp.inlets[name]
	if !ok {
		panic("flownet: process " + s.rp.proc.name + " has no input port " + name)
	}
	return in
}

// Out returns the send endpoint of the named output port.
func (s *Socket) Out(name string) *Outlet {
	out, ok := s.rp.outlets[name]
	if !ok {
		panic("flownet: process " + s.rp.proc.name + " has no output port " + name)
	}
	return out
}

// Var returns a handle on the named process variable.
func (s *Socket) Var(name string) *VarRef {
	st, ok := s.rp.vars[name]
	if !ok {
		panic("flownet: process " + s.rp.proc.name + " has no var " + name)
	}
	return &VarRef{st: st, shape: s.rp.proc.varShape(name)}
}

// Process returns the process being mounted.
func (s *Socket) Process() *Process { return s.rp.proc }

func (p *Process) varShape(name string) Shape {
	for _, v := range p.vars {
		if v.name == name {
			return v.shape
		}
	}
	return nil
}

// rtProc is the runtime side of one process: its mounted step function,
// endpoints, state and management channels.
type rtProc struct {
	e       *Executable
	proc    *Process
	model   Model
	step    StepFn
	inlets  map[string]*Inlet
	outlets map[string]*Outlet
	vars    map[string]*varState
	cmd     chan command
	ack     chan error
	exited  chan struct{}
	err     error
	steps   int
}

func (rp *rtProc) loop() {
	defer close(rp.exited)
	defer rp.e.wg.Done()
	var pending *command
	for {
		var c command
		if pending != nil {
			c, pending = *pending, nil
		} else {
			select {
			case <-rp.e.ctx.Done():
				return
			case c = <-rp.cmd:
			}
		}
		switch c.kind {
		case cmdSteps:
			err := rp.runN(c.steps)
			if rp.tornDown(err) {
				return
			}
			select {
			case rp.ack <- err:
			case <-rp.e.ctx.Done():
				return
			}
		case cmdContinuous:
			next, ok := rp.runContinuous()
			if !ok {
				return
			}
			pending = next
		}
	}
}

// runContinuous steps the process until a command interrupts it. A
// pause ends the run; any other command is handed back to the loop for
// regular handling. ok is false when the process must exit.
func (rp *rtProc) runContinuous() (next *command, ok bool) {
	for {
		select {
		case <-rp.e.ctx.Done():
			return nil, false
		case c := <-rp.cmd:
			if c.kind == cmdPause {
				return nil, true
			}
			return &c, true
		default:
		}
		if err := rp.stepOnce(); err != nil {
			if !rp.tornDown(err) {
				rp.err = err
				rp.e.net.log.Error().Err(err).Str("process", rp.proc.name).Msg("process failed")
			}
			return nil, false
		}
	}
}

func (rp *rtProc) runN(n int) error {
	for i := 0; i < n; i++ {
		if err := rp.stepOnce(); err != nil {
			return errors.Wrapf(err, "process %s step %d", rp.proc.name, rp.steps)
		}
	}
	return nil
}

func (rp *rtProc) stepOnce() error {
	if err := rp.step(rp.steps); err != nil {
		return err
	}
	rp.steps++
	rp.e.net.metrics.step(rp.proc.name)
	return nil
}

// tornDown reports whether err is the normal consequence of Stop
// cancelling the executable.
func (rp *rtProc) tornDown(err error) bool {
	return err != nil && rp.e.ctx.Err() != nil && IsChannelError(err)
}
