package flownet

import "strconv"

// A ReshapePort is a virtual port exposing its parent port under a
// different shape of equal element count. It owns no data: at compile
// time it resolves back to the underlying real port with a reshape
// recorded on the data path. Payloads are row-major, so the reshape is
// a reinterpretation, never a permutation.
type ReshapePort struct {
	portBase
	parent Port
	// dst is set when the parent terminates edges; the reshaped view
	// then sits upstream of the parent instead of downstream.
	dst bool
}

// Process returns the process of the port this view was derived from.
func (p *ReshapePort) Process() *Process { return p.parent.Process() }

func (p *ReshapePort) srcCapable() bool { return !p.dst }
func (p *ReshapePort) dstCapable() bool { return p.dst }

// Parent returns the port this view was derived from.
func (p *ReshapePort) Parent() Port { return p.parent }

// Connect wires this view to one or more destination ports, exactly as
// if it were a real port of the reshaped shape.
func (p *ReshapePort) Connect(dst ...Port) error {
	return connectAll(p, dst)
}

// ConnectFrom wires one or more source ports to this view. Only views
// derived from an input port accept inbound edges.
func (p *ReshapePort) ConnectFrom(src ...Port) error {
	for _, s := range src {
		if err := connect(s, p); err != nil {
			return err
		}
	}
	return nil
}

// Reshape derives a further reshaped view of this view.
func (p *ReshapePort) Reshape(shape Shape) (*ReshapePort, error) {
	return newReshape(p, shape)
}

// Flatten derives a rank-1 view of this view.
func (p *ReshapePort) Flatten() (*ReshapePort, error) {
	return newReshape(p, Shape{p.shape.Size()})
}

// ConcatWith derives a concatenation of this view with other source
// ports along the given axis.
func (p *ReshapePort) ConcatWith(axis int, others ...Port) (*ConcatPort, error) {
	return newConcat(p, others, axis)
}

// A ConcatPort is a virtual port representing the concatenation of its
// member ports along one axis, in member order. All members must agree
// on every dimension except the concatenation axis. At compile time a
// ConcatPort expands into one edge per member plus a concatenation step
// on the data path before delivery.
type ConcatPort struct {
	portBase
	axis int
}

// Process returns the process of the first member port.
func (p *ConcatPort) Process() *Process { return p.ins[0].Process() }

func (p *ConcatPort) srcCapable() bool { return true }
func (p *ConcatPort) dstCapable() bool { return false }

// Axis returns the concatenation axis.
func (p *ConcatPort) Axis() int { return p.axis }

// Members returns the concatenated ports in order.
func (p *ConcatPort) Members() []Port {
	m := make([]Port, len(p.ins))
	copy(m, p.ins)
	return m
}

// Connect wires this concatenation to one or more destination ports,
// exactly as if it were a real port of the concatenated shape.
func (p *ConcatPort) Connect(dst ...Port) error {
	return connectAll(p, dst)
}

// Reshape derives a reshaped view of this concatenation.
func (p *ConcatPort) Reshape(shape Shape) (*ReshapePort, error) {
	return newReshape(p, shape)
}

// Flatten derives a rank-1 view of this concatenation.
func (p *ConcatPort) Flatten() (*ReshapePort, error) {
	return newReshape(p, Shape{p.shape.Size()})
}

// Reshape derives a virtual view of this output under a new shape of
// equal element count. The original port is not modified; the view is
// transparent to Connect and behaves like a real port of the new shape.
func (p *OutPort) Reshape(shape Shape) (*ReshapePort, error) {
	return newReshape(p, shape)
}

// Flatten derives a rank-1 view of this output.
func (p *OutPort) Flatten() (*ReshapePort, error) {
	return newReshape(p, Shape{p.shape.Size()})
}

// ConcatWith derives a virtual port concatenating this output with
// other source ports along the given axis, in argument order after this
// port.
func (p *OutPort) ConcatWith(axis int, others ...Port) (*ConcatPort, error) {
	return newConcat(p, others, axis)
}

// Reshape derives a virtual view of this input under a new shape of
// equal element count. Sources connected to the view feed this input
// through the reshape.
func (p *InPort) Reshape(shape Shape) (*ReshapePort, error) {
	return newReshape(p, shape)
}

// Flatten derives a rank-1 view of this input.
func (p *InPort) Flatten() (*ReshapePort, error) {
	return newReshape(p, Shape{p.shape.Size()})
}

func newReshape(parent Port, shape Shape) (*ReshapePort, error) {
	if !shape.valid() {
		return nil, &ShapeError{Op: "reshape " + portLabel(parent), Reason: "invalid shape " + shape.String()}
	}
	if shape.Size() != parent.Shape().Size() {
		return nil, &ShapeError{Op: "reshape " + portLabel(parent),
			Reason: "element count mismatch: " + parent.Shape().String() + " has " +
				strconv.Itoa(parent.Shape().Size()) + " elements, " + shape.String() +
				" has " + strconv.Itoa(shape.Size())}
	}
	r := &ReshapePort{
		portBase: portBase{
			name:  parent.Name() + ".reshape" + shape.String(),
			shape: shape.clone(),
			dtype: parent.Type(),
		},
		parent: parent,
		dst:    parent.dstCapable(),
	}
	// Record the virtual edge so that graph walks pass through the view.
	pb, rb := parent.base(), r.base()
	if r.dst {
		rb.outs = append(rb.outs, parent)
		pb.ins = append(pb.ins, r)
	} else {
		pb.outs = append(pb.outs, r)
		rb.ins = append(rb.ins, parent)
	}
	return r, nil
}

func newConcat(first Port, others []Port, axis int) (*ConcatPort, error) {
	members := append([]Port{first}, others...)
	for _, m := range members {
		if m == nil {
			return nil, &ConnectionError{Src: first, Reason: "nil concat member"}
		}
		if !m.srcCapable() {
			return nil, &ConnectionError{Src: m, Reason: "concat member is not an output port"}
		}
		if m.Type() != first.Type() {
			return nil, &ConnectionError{Src: first, Dst: m,
				Reason: "element type mismatch: " + first.Type().String() + " vs " + m.Type().String()}
		}
		if m.Process() != nil && first.Process() != nil && m.Process().net != first.Process().net {
			return nil, &ConnectionError{Src: first, Dst: m, Reason: "ports belong to different networks"}
		}
	}
	shape, err := concatShape(members, axis)
	if err != nil {
		return nil, err
	}
	c := &ConcatPort{
		portBase: portBase{
			name:  first.Name() + ".concat",
			shape: shape,
			dtype: first.Type(),
		},
		axis: axis,
	}
	for i, m := range members {
		for _, o := range members[i+1:] {
			if m == o {
				return nil, &ConnectionError{Src: m, Dst: c, Reason: "duplicate concat member"}
			}
		}
	}
	// Members connect backward into the concat node, preserving order.
	cb := c.base()
	for _, m := range members {
		mb := m.base()
		mb.outs = append(mb.outs, c)
		cb.ins = append(cb.ins, m)
	}
	return c, nil
}

// concatShape computes the shape of a concatenation: the axis dimension
// is the sum of the members' axis dimensions, every other dimension
// must be identical across members.
func concatShape(members []Port, axis int) (Shape, error) {
	first := members[0].Shape()
	if axis < 0 || axis >= len(first) {
		return nil, &ShapeError{Op: "concat",
			Reason: "axis " + strconv.Itoa(axis) + " out of range for shape " + first.String()}
	}
	total := 0
	for _, m := range members {
		s := m.Shape()
		if len(s) != len(first) {
			return nil, &ShapeError{Op: "concat",
				Reason: "rank mismatch: " + first.String() + " vs " + s.String()}
		}
		for i := range s {
			if i != axis && s[i] != first[i] {
				return nil, &ShapeError{Op: "concat",
					Reason: "shapes " + first.String() + " and " + s.String() +
						" differ outside axis " + strconv.Itoa(axis)}
			}
		}
		total += s[axis]
	}
	shape := first.clone()
	shape[axis] = total
	return shape, nil
}
