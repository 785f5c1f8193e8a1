package flownet

import (
	"context"
)

// srcSpec is the compile-time resolution of one inbound contributor: a
// virtual-node chain reduced to either a single real output port (leaf)
// or a concatenation of resolved members. The shape is the one exposed
// at the connection boundary after any reshape.
type srcSpec struct {
	out     *OutPort
	members []*srcSpec
	axis    int
	shape   Shape
}

func (s *srcSpec) leaves() int {
	if s.out != nil {
		return 1
	}
	n := 0
	for _, m := range s.members {
		n += m.leaves()
	}
	return n
}

// resolveSource reduces a source-capable port to a srcSpec by walking
// back through virtual nodes to the real output ports.
func resolveSource(p Port) (*srcSpec, error) {
	switch p := p.(type) {
	case *OutPort:
		return &srcSpec{out: p, shape: p.Shape()}, nil
	case *ReshapePort:
		if p.dst {
			return nil, &CompileError{Reason: "input-side reshape " + p.Name() + " used as a source"}
		}
		inner, err := resolveSource(p.parent)
		if err != nil {
			return nil, err
		}
		// Payloads are row-major, so a reshape only re-labels the
		// exposed shape; concat geometry below is untouched because it
		// is derived from the member shapes.
		c := *inner
		c.shape = p.Shape()
		return &c, nil
	case *ConcatPort:
		members := make([]*srcSpec, len(p.ins))
		for i, m := range p.ins {
			ms, err := resolveSource(m)
			if err != nil {
				return nil, err
			}
			// The shape at the concat boundary decides placement.
			cs := *ms
			cs.shape = m.Shape()
			members[i] = &cs
		}
		return &srcSpec{members: members, axis: p.axis, shape: p.Shape()}, nil
	default:
		return nil, &CompileError{Reason: "port " + portLabel(p) + " cannot act as a source"}
	}
}

// inboundSpecs collects the resolved contributors feeding dst. Each
// direct or reshaped edge is one contributor; each concat node is one
// contributor assembled from its member edges. Input-side reshape views
// are traversed: edges landing on the view feed the underlying port.
func inboundSpecs(dst Port) ([]*srcSpec, error) {
	var specs []*srcSpec
	for _, n := range dst.base().ins {
		if r, ok := n.(*ReshapePort); ok && r.dst {
			sub, err := inboundSpecs(r)
			if err != nil {
				return nil, err
			}
			specs = append(specs, sub...)
			continue
		}
		s, err := resolveSource(n)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// procPlan is the validated compile plan for one process.
type procPlan struct {
	proc    *Process
	model   Model
	inbound map[*InPort][]*srcSpec
}

// Compile validates the wired network against the run configuration and
// allocates the runtime channels. It is a one-time, single-threaded
// step: either the whole network compiles into an Executable or it
// fails without allocating anything. A nil cfg selects every process's
// first registered model.
func (n *Net) Compile(cfg RunConfig) (*Executable, error) {
	if cfg == nil {
		cfg = FirstModel{}
	}
	if len(n.procs) == 0 {
		return nil, &CompileError{Reason: "empty network"}
	}

	// Validation pass. Nothing is allocated until the whole network
	// checks out.
	plans := make([]*procPlan, 0, len(n.procs))
	for _, p := range n.procs {
		model, err := cfg.Select(p, append([]Model(nil), p.models...))
		if err != nil {
			return nil, &CompileError{Process: p.name, Reason: "model selection: " + err.Error()}
		}
		if model.Mount == nil {
			return nil, &CompileError{Process: p.name, Reason: "selected model has no mount function"}
		}
		plan := &procPlan{proc: p, model: model, inbound: make(map[*InPort][]*srcSpec)}
		for _, in := range p.ins {
			specs, err := inboundSpecs(in)
			if err != nil {
				return nil, err
			}
			edges := 0
			for _, s := range specs {
				edges += s.leaves()
			}
			if in.required && edges == 0 {
				return nil, &CompileError{Process: p.name,
					Reason: "required input " + in.name + " has no inbound connection"}
			}
			plan.inbound[in] = specs
			n.log.Debug().
				Str("process", p.name).
				Str("port", in.name).
				Int("contributors", len(specs)).
				Int("edges", edges).
				Msg("resolved input")
		}
		plans = append(plans, plan)
	}

	// Allocation pass: one channel per input port, one link per
	// resolved edge, registered with the sending outlet.
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executable{
		net:    n,
		ctx:    ctx,
		cancel: cancel,
		state:  stateReady,
	}
	outlets := make(map[*OutPort]*outlet)
	for _, plan := range plans {
		rp := &rtProc{
			e:       e,
			proc:    plan.proc,
			model:   plan.model,
			inlets:  make(map[string]*Inlet),
			outlets: make(map[string]*Outlet),
			vars:    make(map[string]*varState),
			cmd:     make(chan command, 1),
			ack:     make(chan error, 1),
			exited:  make(chan struct{}),
		}
		for _, out := range plan.proc.outs {
			o := &outlet{port: out}
			outlets[out] = o
			rp.outlets[out.name] = &Outlet{e: e, rp: rp, out: o}
		}
		for _, v := range plan.proc.vars {
			rp.vars[v.name] = &varState{val: v.Init()}
		}
		e.procs = append(e.procs, rp)
	}
	for i, plan := range plans {
		rp := e.procs[i]
		for _, in := range plan.proc.ins {
			inlet := &Inlet{e: e, rp: rp, port: in}
			for _, spec := range plan.inbound[in] {
				inlet.feeds = append(inlet.feeds, buildRecv(spec, n.chanBuf, outlets))
			}
			rp.inlets[in.name] = inlet
		}
	}

	// Mount the selected models onto their sockets.
	for _, rp := range e.procs {
		step := rp.model.Mount(&Socket{rp: rp})
		if step == nil {
			cancel()
			return nil, &CompileError{Process: rp.proc.name,
				Reason: "model " + rp.model.Name + " mounted no step function"}
		}
		rp.step = step
	}

	n.log.Info().
		Int("processes", len(e.procs)).
		Msg("network compiled")
	return e, nil
}

// buildRecv turns a resolved contributor into its runtime receive tree
// and registers the leaf links with the sending outlets.
func buildRecv(spec *srcSpec, buf int, outlets map[*OutPort]*outlet) recvNode {
	if spec.out != nil {
		ln := &link{ch: make(chan *Tensor, buf)}
		o := outlets[spec.out]
		o.links = append(o.links, ln)
		return &leafRecv{ln: ln, shape: spec.shape.clone()}
	}
	c := &concatRecv{axis: spec.axis, shape: spec.shape.clone()}
	for _, m := range spec.members {
		c.members = append(c.members, buildRecv(m, buf, outlets))
	}
	return c
}
