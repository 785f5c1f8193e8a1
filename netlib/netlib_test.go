package netlib_test

import (
	"testing"

	fn "github.com/tsfold/flownet"
	"github.com/tsfold/flownet/netlib"
)

func pipeline(t *testing.T, mid fn.Model, steps int) []*fn.Tensor {
	t.Helper()
	net := fn.NewNet()

	src := net.NewProcess("src")
	src.NewOut("out", fn.Shape{2}, fn.Float64)
	src.AddModel(netlib.Generator("out", func(step int) *fn.Tensor {
		return fn.Full(fn.Shape{2}, float64(step+1))
	}))

	p := net.NewProcess("mid")
	in := p.NewIn("in", fn.Shape{2}, fn.Float64, fn.Required())
	out := p.NewOut("out", fn.Shape{2}, fn.Float64)
	if mid.Name == "accumulate" {
		p.NewVar("acc", fn.Shape{2}, 0)
	}
	p.AddModel(mid)

	snk := net.NewProcess("sink")
	sin := snk.NewIn("in", fn.Shape{2}, fn.Float64, fn.Required())
	var got []*fn.Tensor
	snk.AddModel(netlib.Collector("in", func(step int, tt *fn.Tensor) {
		got = append(got, tt)
	}))

	if err := src.Out("out").Connect(in); err != nil {
		t.Fatal(err)
	}
	if err := out.Connect(sin); err != nil {
		t.Fatal(err)
	}
	exe, err := net.Compile(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer exe.Stop()
	if err := exe.Run(fn.RunSteps{Steps: steps, Blocking: true}); err != nil {
		t.Fatal(err)
	}
	return got
}

func TestRelay(t *testing.T) {
	got := pipeline(t, netlib.Relay("in", "out"), 3)
	if len(got) != 3 {
		t.Fatalf("received %d tensors, want 3", len(got))
	}
	for i, g := range got {
		want := fn.Full(fn.Shape{2}, float64(i+1))
		if !g.Equal(want) {
			t.Fatalf("step %d: got %v, want %v", i, g.Data(), want.Data())
		}
	}
}

func TestTransform(t *testing.T) {
	double := netlib.Transform("in", "out", func(tt *fn.Tensor) *fn.Tensor {
		out := tt.Clone()
		for i, v := range out.Data() {
			out.Data()[i] = 2 * v
		}
		return out
	})
	got := pipeline(t, double, 2)
	for i, g := range got {
		want := fn.Full(fn.Shape{2}, 2*float64(i+1))
		if !g.Equal(want) {
			t.Fatalf("step %d: got %v, want %v", i, g.Data(), want.Data())
		}
	}
}

func TestAccumulate(t *testing.T) {
	// inputs 1, 2, 3 accumulate to 1, 3, 6
	got := pipeline(t, netlib.Accumulate("in", "out", "acc"), 3)
	sums := []float64{1, 3, 6}
	if len(got) != 3 {
		t.Fatalf("received %d tensors, want 3", len(got))
	}
	for i, g := range got {
		want := fn.Full(fn.Shape{2}, sums[i])
		if !g.Equal(want) {
			t.Fatalf("step %d: got %v, want %v", i, g.Data(), want.Data())
		}
	}
}
