// Package netlib provides stock process models for flownet networks:
// generators, collectors and simple relays. They cover the common ends
// of a pipeline so that tests and small networks do not have to define
// their own models.
package netlib

import (
	"github.com/tsfold/flownet"
)

// Generator returns a model that emits f(step) on the named output port
// every timestep.
func Generator(out string, f func(step int) *flownet.Tensor) flownet.Model {
	return flownet.Model{
		Name: "generator",
		Mount: func(s *flownet.Socket) flownet.StepFn {
			o := s.Out(out)
			return func(step int) error {
				return o.Send(f(step))
			}
		}}
}

// Collector returns a model that receives from the named input port
// every timestep and hands the value to f.
func Collector(in string, f func(step int, t *flownet.Tensor)) flownet.Model {
	return flownet.Model{
		Name: "collector",
		Mount: func(s *flownet.Socket) flownet.StepFn {
			i := s.In(in)
			return func(step int) error {
				t, err := i.Recv()
				if err != nil {
					return err
				}
				f(step, t)
				return nil
			}
		}}
}

// Relay returns a model that forwards its input to its output
// unchanged.
func Relay(in, out string) flownet.Model {
	return flownet.Model{
		Name: "relay",
		Mount: func(s *flownet.Socket) flownet.StepFn {
			i, o := s.In(in), s.Out(out)
			return func(step int) error {
				t, err := i.Recv()
				if err != nil {
					return err
				}
				return o.Send(t)
			}
		}}
}

// Transform returns a model that applies f to its input and sends the
// result on its output.
func Transform(in, out string, f func(t *flownet.Tensor) *flownet.Tensor) flownet.Model {
	return flownet.Model{
		Name: "transform",
		Mount: func(s *flownet.Socket) flownet.StepFn {
			i, o := s.In(in), s.Out(out)
			return func(step int) error {
				t, err := i.Recv()
				if err != nil {
					return err
				}
				return o.Send(f(t))
			}
		}}
}

// Accumulate returns a model that adds each received value into the
// named variable element-wise and sends the updated variable on its
// output.
func Accumulate(in, out, varName string) flownet.Model {
	return flownet.Model{
		Name: "accumulate",
		Mount: func(s *flownet.Socket) flownet.StepFn {
			i, o := s.In(in), s.Out(out)
			v := s.Var(varName)
			return func(step int) error {
				t, err := i.Recv()
				if err != nil {
					return err
				}
				acc := v.Get()
				d, td := acc.Data(), t.Data()
				for k := range d {
					d[k] += td[k]
				}
				if err := v.Set(acc); err != nil {
					return err
				}
				return o.Send(acc)
			}
		}}
}
