package flownet

// A ReduceOp is the element-wise binary operation combining values that
// fan in to the same input port. The provided operations are
// associative and commutative, so arrival order across edges does not
// affect the result.
type ReduceOp int

const (
	// ReduceSum adds inbound values element-wise. This is the default.
	ReduceSum ReduceOp = iota
	// ReduceProd multiplies inbound values element-wise.
	ReduceProd
)

func (op ReduceOp) String() string {
	switch op {
	case ReduceSum:
		return "sum"
	case ReduceProd:
		return "prod"
	}
	return "reduce(?)"
}

// apply folds src into acc element-wise.
func (op ReduceOp) apply(acc, src []float64) {
	switch op {
	case ReduceProd:
		for i := range acc {
			acc[i] *= src[i]
		}
	default:
		for i := range acc {
			acc[i] += src[i]
		}
	}
}
