package flownet

import (
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// A Net is an explicit network-construction context. Processes, ports
// and edges are declared on a Net, which is then compiled into an
// Executable. A Net carries no runtime state; compiling it twice yields
// two independent executables.
type Net struct {
	procs   []*Process
	log     zerolog.Logger
	metrics *metrics
	chanBuf int
}

// An Option configures a Net.
type Option func(*Net)

// WithLogger sets the structured logger used by compilation and the
// runtime. The default logger discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(n *Net) { n.log = l }
}

// WithMetrics registers runtime counters (steps, sends, reductions)
// with the given Prometheus registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(n *Net) { n.metrics = newMetrics(reg) }
}

// WithChannelBuffer sets the per-edge channel buffer depth. The default
// is 64. A larger buffer lets fast senders run further ahead of slow
// receivers.
func WithChannelBuffer(depth int) Option {
	return func(n *Net) {
		if depth > 0 {
			n.chanBuf = depth
		}
	}
}

// NewNet creates an empty network.
func NewNet(opts ...Option) *Net {
	n := &Net{
		log:     zerolog.Nop(),
		chanBuf: 64,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Processes returns the processes declared on this net, in creation
// order.
func (n *Net) Processes() []*Process {
	ps := make([]*Process, len(n.procs))
	copy(ps, n.procs)
	return ps
}

// NewProcess declares a new process on the net. It panics if the name
// is empty or already taken; process declaration errors are programming
// errors, unlike wiring errors which are returned.
func (n *Net) NewProcess(name string) *Process {
	if name == "" {
		panic("flownet: empty process name")
	}
	for _, p := range n.procs {
		if p.name == name {
			panic("flownet: duplicate process name " + name)
		}
	}
	p := &Process{
		id:   uuid.New(),
		name: name,
		net:  n,
	}
	n.procs = append(n.procs, p)
	return p
}

// A Process is an independent unit of computation with typed ports. Its
// behavior is supplied by one or more registered models; a run
// configuration selects which model executes. Processes share no
// memory: all communication flows through the channels compiled from
// port connections.
type Process struct {
	id     uuid.UUID
	name   string
	net    *Net
	ins    []*InPort
	outs   []*OutPort
	vars   []*Var
	models []Model
}

// ID returns the unique process id.
func (p *Process) ID() uuid.UUID { return p.id }

// Name returns the process name.
func (p *Process) Name() string { return p.name }

// A PortOption configures an input port at declaration time.
type PortOption func(*InPort)

// WithReduce sets the reduction operation applied when several edges
// fan in to the port. The default is ReduceSum.
func WithReduce(op ReduceOp) PortOption {
	return func(p *InPort) { p.reduce = op }
}

// Required marks the port as mandatory: compilation fails if no edge
// terminates at it.
func Required() PortOption {
	return func(p *InPort) { p.required = true }
}

// NewIn declares an input port on the process. It panics on an invalid
// shape or duplicate port name.
func (p *Process) NewIn(name string, shape Shape, dtype DType, opts ...PortOption) *InPort {
	p.checkPortName(name)
	if !shape.valid() {
		panic("flownet: invalid shape " + shape.String() + " for port " + p.name + "." + name)
	}
	in := &InPort{
		portBase: portBase{name: name, shape: shape.clone(), dtype: dtype, proc: p},
		reduce:   ReduceSum,
	}
	for _, o := range opts {
		o(in)
	}
	p.ins = append(p.ins, in)
	return in
}

// NewOut declares an output port on the process. It panics on an
// invalid shape or duplicate port name.
func (p *Process) NewOut(name string, shape Shape, dtype DType) *OutPort {
	p.checkPortName(name)
	if !shape.valid() {
		panic("flownet: invalid shape " + shape.String() + " for port " + p.name + "." + name)
	}
	out := &OutPort{
		portBase: portBase{name: name, shape: shape.clone(), dtype: dtype, proc: p},
	}
	p.outs = append(p.outs, out)
	return out
}

// NewVar declares a tensor-valued state variable on the process,
// initialized to init broadcast over the shape. Models read and write
// the variable through their Socket; the driving side may inspect it
// through Executable.VarValue and SetVar while execution is paused or
// stopped.
func (p *Process) NewVar(name string, shape Shape, init float64) *Var {
	for _, v := range p.vars {
		if v.name == name {
			panic("flownet: duplicate var name " + name + " in process " + p.name)
		}
	}
	if !shape.valid() {
		panic("flownet: invalid shape " + shape.String() + " for var " + p.name + "." + name)
	}
	v := &Var{name: name, shape: shape.clone(), init: init, proc: p}
	p.vars = append(p.vars, v)
	return v
}

// AddModel registers a behavioral model for this process. The run
// configuration passed to Net.Compile selects among registered models.
func (p *Process) AddModel(m Model) {
	p.models = append(p.models, m)
}

// Ins returns the process's input ports in declaration order.
func (p *Process) Ins() []*InPort {
	ins := make([]*InPort, len(p.ins))
	copy(ins, p.ins)
	return ins
}

// Outs returns the process's output ports in declaration order.
func (p *Process) Outs() []*OutPort {
	outs := make([]*OutPort, len(p.outs))
	copy(outs, p.outs)
	return outs
}

// In returns the input port with the given name, or nil.
func (p *Process) In(name string) *InPort {
	for _, in := range p.ins {
		if in.name == name {
			return in
		}
	}
	return nil
}

// Out returns the output port with the given name, or nil.
func (p *Process) Out(name string) *OutPort {
	for _, out := range p.outs {
		if out.name == name {
			return out
		}
	}
	return nil
}

func (p *Process) checkPortName(name string) {
	if name == "" {
		panic("flownet: empty port name in process " + p.name)
	}
	if p.In(name) != nil || p.Out(name) != nil {
		panic("flownet: duplicate port name " + name + " in process " + p.name)
	}
}

// A Var is tensor-valued process state. Before compilation Value
// returns the broadcast initial value; after compilation reads and
// writes go through the executable's per-process state.
type Var struct {
	name  string
	shape Shape
	init  float64
	proc  *Process
}

// Name returns the variable name.
func (v *Var) Name() string { return v.name }

// Shape returns the variable shape.
func (v *Var) Shape() Shape { return v.shape }

// Init returns the initial tensor value.
func (v *Var) Init() *Tensor { return Full(v.shape, v.init) }

// A StepFn advances a process by one timestep. The step argument counts
// timesteps executed by the process so far, starting at 0.
type StepFn func(step int) error

// A Model implements the behavior of a process. Mount is called once at
// compile time with the process's allocated runtime endpoints and
// returns the function executed each timestep. For example, a model
// that relays its input:
//
//	relay := flownet.Model{
//		Name: "relay",
//		Mount: func(s *flownet.Socket) flownet.StepFn {
//			in, out := s.In("in"), s.Out("out")
//			return func(step int) error {
//				t, err := in.Recv()
//				if err != nil {
//					return err
//				}
//				return out.Send(t)
//			}
//		}}
type Model struct {
	Name  string
	Mount func(s *Socket) StepFn
}
