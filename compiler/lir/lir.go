package lir

import (
	"fmt"

	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/glang/compiler/ir"
)

type (
	Op  int
	Reg int

	Instr struct {
		Op  Op
		Reg Reg

		// Target is the jump destination until addresses are resolved.
		Target *Instr
		// Addr is the resolved jump destination.
		Addr int

		// Incoming are jumps targeting this instruction.
		Incoming []*Instr

		Loc ir.Loc
	}

	// Var is a memory cell range of a frame variable.
	Var struct {
		Name string
		Addr int
		Size int

		// Indirect cell holds an address of the value.
		Indirect bool
	}

	Func struct {
		Name  string
		Start int
		Size  int

		Frame []*Var
		Ret   *Var
	}

	Program struct {
		Code  []*Instr
		Funcs []*Func

		// Memory is the number of cells used by frames.
		Memory int
	}
)

const (
	A Reg = iota
	B
	C
	D
	E
	F
	G
	H

	NumRegs
)

const (
	Read Op = iota
	Write
	Load
	Store
	Add
	Sub
	Get
	Put
	Rst
	Inc
	Dec
	Shl
	Shr
	Jump
	Jpos
	Jzero
	Strk
	Jumpr
	Halt

	NumOps
)

var names = [NumOps]string{
	Read:  "READ",
	Write: "WRITE",
	Load:  "LOAD",
	Store: "STORE",
	Add:   "ADD",
	Sub:   "SUB",
	Get:   "GET",
	Put:   "PUT",
	Rst:   "RST",
	Inc:   "INC",
	Dec:   "DEC",
	Shl:   "SHL",
	Shr:   "SHR",
	Jump:  "JUMP",
	Jpos:  "JPOS",
	Jzero: "JZERO",
	Strk:  "STRK",
	Jumpr: "JUMPR",
	Halt:  "HALT",
}

var costs = [NumOps]int{
	Read:  100,
	Write: 100,
	Load:  50,
	Store: 50,
	Add:   10,
	Sub:   10,
	Get:   1,
	Put:   1,
	Rst:   1,
	Inc:   1,
	Dec:   1,
	Shl:   1,
	Shr:   1,
	Jump:  1,
	Jpos:  1,
	Jzero: 1,
	Strk:  1,
	Jumpr: 1,
	Halt:  0,
}

func (op Op) String() string {
	if op < 0 || op >= NumOps {
		return fmt.Sprintf("op(%d)", int(op))
	}

	return names[op]
}

// ParseOp returns op by its mnemonic.
func ParseOp(s string) (Op, bool) {
	for op, n := range names {
		if n == s {
			return Op(op), true
		}
	}

	return 0, false
}

// Cost is the number of machine cycles op takes.
func (op Op) Cost() int {
	return costs[op]
}

func (op Op) IsJump() bool {
	return op == Jump || op == Jpos || op == Jzero
}

func (op Op) HasReg() bool {
	switch op {
	case Read, Write, Halt, Jump, Jpos, Jzero:
		return false
	default:
		return true
	}
}

func (r Reg) String() string {
	if r < 0 || r >= NumRegs {
		return fmt.Sprintf("reg(%d)", int(r))
	}

	return string(rune('a' + r))
}

func ParseReg(s string) (Reg, bool) {
	if len(s) != 1 || s[0] < 'a' || s[0] >= 'a'+byte(NumRegs) {
		return 0, false
	}

	return Reg(s[0] - 'a'), true
}

func (r Reg) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, r.String())
}

// SetTarget points jump x to t and records it on t.
func (x *Instr) SetTarget(t *Instr) {
	x.Target = t
	t.Incoming = append(t.Incoming, x)
}

func (x *Instr) String() string {
	switch {
	case x.Op.IsJump():
		return fmt.Sprintf("%v %d", x.Op, x.Addr)
	case x.Op.HasReg():
		return fmt.Sprintf("%v %v", x.Op, x.Reg)
	default:
		return x.Op.String()
	}
}
