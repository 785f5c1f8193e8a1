package flownet

import (
	"fmt"

	"github.com/pkg/errors"
)

// A ConnectionError reports an invalid edge insertion: direction
// mismatch, shape or element-type mismatch, or a duplicate edge between
// the same two ports. No edge is recorded when a ConnectionError is
// returned.
type ConnectionError struct {
	Src, Dst Port
	Reason   string
}

func (e *ConnectionError) Error() string {
	s, d := "?", "?"
	if e.Src != nil {
		s = portLabel(e.Src)
	}
	if e.Dst != nil {
		d = portLabel(e.Dst)
	}
	return fmt.Sprintf("cannot connect %s to %s: %s", s, d, e.Reason)
}

// A ShapeError reports invalid reshape or concatenation geometry.
type ShapeError struct {
	Op     string
	Reason string
}

func (e *ShapeError) Error() string {
	return e.Op + ": " + e.Reason
}

// A CompileError reports an unsatisfiable network: a process without a
// selectable model, or a required input port with no inbound edge.
// Compilation fails atomically; no channels are allocated.
type CompileError struct {
	Process string
	Reason  string
}

func (e *CompileError) Error() string {
	if e.Process == "" {
		return "compile: " + e.Reason
	}
	return "compile: process " + e.Process + ": " + e.Reason
}

// A ChannelError reports communication attempted on a torn-down or
// never-compiled channel. The affected operation fails; data is never
// silently dropped.
type ChannelError struct {
	Port   string
	Reason string
}

func (e *ChannelError) Error() string {
	if e.Port == "" {
		return "channel: " + e.Reason
	}
	return "channel " + e.Port + ": " + e.Reason
}

// IsConnectionError reports whether the cause of err is a ConnectionError.
func IsConnectionError(err error) bool {
	_, ok := errors.Cause(err).(*ConnectionError)
	return ok
}

// IsShapeError reports whether the cause of err is a ShapeError.
func IsShapeError(err error) bool {
	_, ok := errors.Cause(err).(*ShapeError)
	return ok
}

// IsCompileError reports whether the cause of err is a CompileError.
func IsCompileError(err error) bool {
	_, ok := errors.Cause(err).(*CompileError)
	return ok
}

// IsChannelError reports whether the cause of err is a ChannelError.
func IsChannelError(err error) bool {
	_, ok := errors.Cause(err).(*ChannelError)
	return ok
}

func portLabel(p Port) string {
	if pr := p.Process(); pr != nil {
		return pr.Name() + "." + p.Name()
	}
	return p.Name()
}
