package back

import (
	"math/bits"

	"github.com/slowlang/glang/compiler/ir"
	"github.com/slowlang/glang/compiler/lir"
)

// Operands of binary operations come in a (lhs) and b (rhs).
// Result is left in a. Any other register may be clobbered.

// constant puts k into r bit by bit from the most significant one.
func (l *funcLowerer) constant(k uint64, r lir.Reg) {
	l.emit(lir.Rst, r)

	if k == 0 {
		return
	}

	l.emit(lir.Inc, r)

	for bit := bits.Len64(k) - 2; bit >= 0; bit-- {
		l.emit(lir.Shl, r)

		if k&(1<<bit) != 0 {
			l.emit(lir.Inc, r)
		}
	}
}

func (l *funcLowerer) alu(op ir.Op) {
	switch op {
	case ir.Add:
		l.emit(lir.Add, lir.B)
	case ir.Sub:
		l.emit(lir.Sub, lir.B)
	case ir.Shl:
		l.emit(lir.Shl, lir.A)
	case ir.Shr:
		l.emit(lir.Shr, lir.A)
	case ir.Mul:
		l.mul()
	case ir.Div:
		l.divrem(false)
	case ir.Mod:
		l.divrem(true)
	case ir.Ne:
		l.ne()
	case ir.Gt:
		l.emit(lir.Sub, lir.B)
	case ir.Lt:
		l.emit(lir.Put, lir.E)
		l.emit(lir.Get, lir.B)
		l.emit(lir.Sub, lir.E)
	default:
		panic(op)
	}
}

// mul halves a and doubles b accumulating b into c when a is odd.
func (l *funcLowerer) mul() {
	l.emit(lir.Rst, lir.C)

	loop := l.emit(lir.Jzero, lir.A)
	l.emit(lir.Put, lir.D)
	l.emit(lir.Shr, lir.D)
	l.emit(lir.Shl, lir.D)
	l.emit(lir.Put, lir.E)
	l.emit(lir.Sub, lir.D)

	odd := l.emit(lir.Jzero, lir.A)
	l.emit(lir.Get, lir.C)
	l.emit(lir.Add, lir.B)
	l.emit(lir.Put, lir.C)

	even := l.emit(lir.Get, lir.E)
	l.emit(lir.Shr, lir.A)
	l.emit(lir.Shl, lir.B)

	back := l.emit(lir.Jump, lir.A)
	end := l.emit(lir.Get, lir.C)

	loop.SetTarget(end)
	odd.SetTarget(even)
	back.SetTarget(loop)
}

// divrem divides a by b. Quotient is accumulated in c and remainder is in e.
// Division by zero gives zero for both.
func (l *funcLowerer) divrem(rem bool) {
	l.emit(lir.Rst, lir.C)
	l.emit(lir.Rst, lir.E)

	l.emit(lir.Put, lir.F)
	l.emit(lir.Get, lir.B)
	zero := l.emit(lir.Jzero, lir.A)
	l.emit(lir.Get, lir.F)

	// e is what is left of the dividend
	cond := l.emit(lir.Put, lir.E)
	l.emit(lir.Get, lir.B)
	l.emit(lir.Sub, lir.E)
	done := l.emit(lir.Jpos, lir.A)

	// find the largest d = b<<k not exceeding e, f = 1<<k
	l.emit(lir.Rst, lir.F)
	l.emit(lir.Inc, lir.F)
	l.emit(lir.Get, lir.B)
	l.emit(lir.Put, lir.D)

	grow := l.emit(lir.Get, lir.D)
	l.emit(lir.Sub, lir.E)
	over := l.emit(lir.Jpos, lir.A)
	l.emit(lir.Shl, lir.F)
	l.emit(lir.Shl, lir.D)
	again := l.emit(lir.Jump, lir.A)

	shrink := l.emit(lir.Shr, lir.F)
	l.emit(lir.Shr, lir.D)
	l.emit(lir.Get, lir.C)
	l.emit(lir.Add, lir.F)
	l.emit(lir.Put, lir.C)
	l.emit(lir.Get, lir.E)
	l.emit(lir.Sub, lir.D)
	next := l.emit(lir.Jump, lir.A)

	res := lir.C
	if rem {
		res = lir.E
	}

	end := l.emit(lir.Get, res)

	zero.SetTarget(end)
	done.SetTarget(end)
	over.SetTarget(shrink)
	again.SetTarget(grow)
	next.SetTarget(cond)
}

// ne leaves a-b or b-a in a, whichever is positive.
func (l *funcLowerer) ne() {
	l.emit(lir.Put, lir.E)
	l.emit(lir.Sub, lir.B)
	pos := l.emit(lir.Jpos, lir.A)
	l.emit(lir.Get, lir.B)
	l.emit(lir.Sub, lir.E)
	end := l.emit(lir.Get, lir.A)

	pos.SetTarget(end)
}
