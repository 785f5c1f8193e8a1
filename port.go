package flownet

// A Port is a shaped, typed endpoint in a process network. Concrete
// kinds are *InPort and *OutPort, owned by a process, and the virtual
// *ReshapePort and *ConcatPort returned by Reshape and ConcatWith.
//
// Direction is checked when an edge is inserted: only source-capable
// ports (an OutPort, or a virtual view of one) can feed destination-
// capable ports (an InPort, or a virtual view of one).
type Port interface {
	// Name returns the port name within its process.
	Name() string
	// Shape returns the shape exposed at the connection boundary.
	Shape() Shape
	// Type returns the declared element type.
	Type() DType
	// Process returns the owning process. Virtual ports report the
	// process of the port they were derived from.
	Process() *Process

	base() *portBase
	srcCapable() bool
	dstCapable() bool
}

// portBase is the connection bookkeeping shared by all port kinds.
// Edges are recorded symmetrically: a connection from a to b appends b
// to a.outs and a to b.ins.
type portBase struct {
	name  string
	shape Shape
	dtype DType
	proc  *Process
	ins   []Port
	outs  []Port
}

func (b *portBase) Name() string    { return b.name }
func (b *portBase) Shape() Shape    { return b.shape }
func (b *portBase) Type() DType     { return b.dtype }
func (b *portBase) base() *portBase { return b }

func (b *portBase) connectedTo(p Port) bool {
	for _, o := range b.outs {
		if o == p {
			return true
		}
	}
	return false
}

// An OutPort is an output port of a process. Values sent on it are
// delivered to every connected input; each destination receives its own
// copy.
type OutPort struct {
	portBase
}

// Process returns the owning process.
func (p *OutPort) Process() *Process { return p.proc }

func (p *OutPort) srcCapable() bool { return true }
func (p *OutPort) dstCapable() bool { return false }

// Connect wires this output to one or more destination ports. One edge
// is inserted per destination; repeated calls accumulate edges, so an
// output may fan out to many inputs.
func (p *OutPort) Connect(dst ...Port) error {
	return connectAll(p, dst)
}

// Outbound returns the ports this output currently connects to, in
// insertion order.
func (p *OutPort) Outbound() []Port {
	out := make([]Port, len(p.outs))
	copy(out, p.outs)
	return out
}

// Dsts returns the real input ports this output feeds, resolving any
// virtual ports in between.
func (p *OutPort) Dsts() []*InPort {
	var dsts []*InPort
	walkDst(p, &dsts)
	return dsts
}

// An InPort is an input port of a process. When several edges terminate
// at the same input, arriving values are combined element-wise by the
// port's reduction operation (sum by default).
type InPort struct {
	portBase
	reduce   ReduceOp
	required bool
}

// Process returns the owning process.
func (p *InPort) Process() *Process { return p.proc }

func (p *InPort) srcCapable() bool { return false }
func (p *InPort) dstCapable() bool { return true }

// Connect originates a connection from this input, which is never
// legal: inputs only terminate edges. It always returns a
// ConnectionError and exists so that miswired code fails the same way
// any other direction mismatch does.
func (p *InPort) Connect(dst ...Port) error {
	return connectAll(p, dst)
}

// ConnectFrom wires one or more source ports to this input. It is the
// mirror of Connect on the source side and records the exact same edge.
func (p *InPort) ConnectFrom(src ...Port) error {
	for _, s := range src {
		if err := connect(s, p); err != nil {
			return err
		}
	}
	return nil
}

// Inbound returns the ports currently feeding this input, in insertion
// order. Virtual ports appear as themselves; use Srcs to resolve them.
func (p *InPort) Inbound() []Port {
	in := make([]Port, len(p.ins))
	copy(in, p.ins)
	return in
}

// Srcs returns the real output ports feeding this input, resolving any
// virtual ports in between.
func (p *InPort) Srcs() []*OutPort {
	var srcs []*OutPort
	walkSrc(p, &srcs)
	return srcs
}

// Reduce returns the reduction operation applied at fan-in.
func (p *InPort) Reduce() ReduceOp { return p.reduce }

// Required reports whether compilation fails when this input has no
// inbound edge.
func (p *InPort) Required() bool { return p.required }

func connectAll(src Port, dst []Port) error {
	for _, d := range dst {
		if err := connect(src, d); err != nil {
			return err
		}
	}
	return nil
}

// connect validates and inserts a single edge from src to dst. It fails
// fast: on any mismatch no edge is recorded on either end.
func connect(src, dst Port) error {
	if src == nil || dst == nil {
		return &ConnectionError{Src: src, Dst: dst, Reason: "nil port"}
	}
	if !src.srcCapable() {
		return &ConnectionError{Src: src, Dst: dst, Reason: "source is not an output port"}
	}
	if !dst.dstCapable() {
		return &ConnectionError{Src: src, Dst: dst, Reason: "destination is not an input port"}
	}
	if src.Process() != nil && dst.Process() != nil && src.Process().net != dst.Process().net {
		return &ConnectionError{Src: src, Dst: dst, Reason: "ports belong to different networks"}
	}
	if src.Type() != dst.Type() {
		return &ConnectionError{Src: src, Dst: dst,
			Reason: "element type mismatch: " + src.Type().String() + " vs " + dst.Type().String()}
	}
	if !src.Shape().Equal(dst.Shape()) {
		return &ConnectionError{Src: src, Dst: dst,
			Reason: "shape mismatch: " + src.Shape().String() + " vs " + dst.Shape().String()}
	}
	sb, db := src.base(), dst.base()
	if sb.connectedTo(dst) {
		return &ConnectionError{Src: src, Dst: dst, Reason: "duplicate connection"}
	}
	sb.outs = append(sb.outs, dst)
	db.ins = append(db.ins, src)
	return nil
}

// walkSrc collects the real output ports reachable backwards from p
// through virtual nodes.
func walkSrc(p Port, srcs *[]*OutPort) {
	for _, in := range p.base().ins {
		if o, ok := in.(*OutPort); ok {
			*srcs = append(*srcs, o)
			continue
		}
		walkSrc(in, srcs)
	}
}

// walkDst collects the real input ports reachable forward from p
// through virtual nodes.
func walkDst(p Port, dsts *[]*InPort) {
	for _, out := range p.base().outs {
		if i, ok := out.(*InPort); ok {
			*dsts = append(*dsts, i)
			continue
		}
		walkDst(out, dsts)
	}
}
