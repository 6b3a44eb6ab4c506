package ir

import (
	"fmt"

	"tlog.app/go/tlog/tlwire"
)

type (
	// ID is a handle of an instruction in its Func arena.
	ID int

	// BlockID is a handle of a block in its Func.
	BlockID int

	Loc struct {
		Line, Col int
	}

	Program struct {
		Funcs []*Func
	}

	Func struct {
		Name   string
		IsMain bool
		Loc    Loc

		Params []ID
		Locals []ID

		// Callers are call instructions referring to this function.
		Callers []CallSite

		Entry  BlockID
		Blocks []Block

		Instrs []Instr
	}

	CallSite struct {
		Func *Func
		Call ID
	}

	Block struct {
		Code []ID
	}

	Instr struct {
		X     any
		Loc   Loc
		Block BlockID

		// Refs is a multiset of instructions using this one as an operand.
		Refs []ID

		Dead bool
	}

	VarKind int

	Variable struct {
		Name  string
		Kind  VarKind
		Size  int
		ByRef bool
		Spill bool
	}

	Const struct {
		Value uint64
	}

	// ElemAddr is an address of Var[Index] for an array stored in the frame.
	ElemAddr struct {
		Var   ID
		Index ID
	}

	// ElemAddrIndirect is an address of Var[Index] for an array
	// whose address is stored in Var.
	ElemAddrIndirect struct {
		Var   ID
		Index ID
	}

	// Store writes Src to Dst which is either a Variable or an address.
	Store struct {
		Dst ID
		Src ID
	}

	// StoreIndirect writes Src to the cell whose address is stored in Dst.
	StoreIndirect struct {
		Dst ID
		Src ID
	}

	// Load reads Src which is either a Variable or an address.
	Load struct {
		Src ID
	}

	// LoadIndirect reads the cell whose address is stored in Src.
	LoadIndirect struct {
		Src ID
	}

	// LoadPair reads Src variable into the secondary register
	// keeping the primary one intact.
	LoadPair struct {
		Src ID
	}

	Op int

	ALU struct {
		Op   Op
		L, R ID
	}

	End struct{}

	Ret struct{}

	Call struct {
		Func *Func
		Args []ID
	}

	Branch struct {
		Target BlockID
	}

	CondKind int

	BranchIf struct {
		Kind CondKind
		Cond ID

		Then, Else BlockID
	}

	Read struct{}

	Write struct {
		Src ID
	}
)

const (
	Nil      ID      = -1
	NilBlock BlockID = -1
)

const (
	Local VarKind = iota
	Param
)

const (
	Add Op = iota
	Sub
	Mul
	Div
	Mod
	Shl
	Shr
	Eq
	Ne
	Lt
	Gt
	Le
	Ge

	numOps
)

const (
	// Positive takes Then if the condition is greater than zero.
	Positive CondKind = iota
	// Zero takes Then if the condition is zero.
	Zero
)

var opNames = [numOps]string{
	Add: "add",
	Sub: "sub",
	Mul: "mul",
	Div: "div",
	Mod: "mod",
	Shl: "shl",
	Shr: "shr",
	Eq:  "eq",
	Ne:  "ne",
	Lt:  "lt",
	Gt:  "gt",
	Le:  "le",
	Ge:  "ge",
}

func (op Op) String() string {
	if op < 0 || op >= numOps {
		return fmt.Sprintf("op(%d)", int(op))
	}

	return opNames[op]
}

func (op Op) Relational() bool {
	return op >= Eq && op < numOps
}

// Complement returns the relation which holds exactly when op doesn't.
// Only eq, le and ge have one in the set the machine can test.
func (op Op) Complement() (Op, bool) {
	switch op {
	case Eq:
		return Ne, true
	case Ge:
		return Lt, true
	case Le:
		return Gt, true
	default:
		return op, false
	}
}

func (k VarKind) String() string {
	switch k {
	case Local:
		return "local"
	case Param:
		return "param"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k CondKind) String() string {
	switch k {
	case Positive:
		return "jpos"
	case Zero:
		return "jzero"
	default:
		return fmt.Sprintf("cond(%d)", int(k))
	}
}

func (l Loc) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Col)
}

func (l Loc) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	return e.AppendFormat(b, "%d:%d", l.Line, l.Col)
}

// Main returns the program entry function.
func (p *Program) Main() *Func {
	for _, f := range p.Funcs {
		if f.IsMain {
			return f
		}
	}

	return nil
}

// Terminal reports whether x ends a block.
func Terminal(x any) bool {
	switch x.(type) {
	case *Branch, *BranchIf, *Ret, *End:
		return true
	default:
		return false
	}
}

// Operands returns pointers to every operand slot of x in a fixed order.
func Operands(x any) []*ID {
	switch x := x.(type) {
	case *Variable, *Const, *End, *Ret, *Branch, *Read:
		return nil
	case *ElemAddr:
		return []*ID{&x.Var, &x.Index}
	case *ElemAddrIndirect:
		return []*ID{&x.Var, &x.Index}
	case *Store:
		return []*ID{&x.Dst, &x.Src}
	case *StoreIndirect:
		return []*ID{&x.Dst, &x.Src}
	case *Load:
		return []*ID{&x.Src}
	case *LoadIndirect:
		return []*ID{&x.Src}
	case *LoadPair:
		return []*ID{&x.Src}
	case *ALU:
		return []*ID{&x.L, &x.R}
	case *Call:
		l := make([]*ID, len(x.Args))

		for i := range x.Args {
			l[i] = &x.Args[i]
		}

		return l
	case *BranchIf:
		return []*ID{&x.Cond}
	case *Write:
		return []*ID{&x.Src}
	default:
		panic(x)
	}
}
