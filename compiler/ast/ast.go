package ast

// Tree handed over by the front end. Names are already resolved:
// every Ident and Index points at its declaration
// and every Call points at its procedure.

type (
	Node interface{}

	Stmt interface{}

	Expr interface{}

	// Decl is either *Var or *Param.
	Decl interface{}

	Base struct {
		Line int
		Col  int
	}

	File struct {
		// Decls are in declaration order. Exactly one has IsMain set.
		Decls []*Proc
	}

	Proc struct {
		Base `tlog:",embed"`

		Name   string
		IsMain bool

		Params []*Param
		Locals []*Var

		Body []Stmt
	}

	Mode int

	Param struct {
		Base `tlog:",embed"`

		Name  string
		Mode  Mode
		Array bool
	}

	Var struct {
		Base `tlog:",embed"`

		Name string
		Size int // > 0 for arrays
	}

	Assign struct {
		Base `tlog:",embed"`

		Dst Expr // *Ident or *Index
		Src Expr
	}

	If struct {
		Base `tlog:",embed"`

		Cond Expr
		Then []Stmt
		Else []Stmt
	}

	While struct {
		Base `tlog:",embed"`

		Cond Expr
		Body []Stmt
	}

	Repeat struct {
		Base `tlog:",embed"`

		Body []Stmt
		Cond Expr
	}

	Call struct {
		Base `tlog:",embed"`

		Proc *Proc
		Args []Expr
	}

	Read struct {
		Base `tlog:",embed"`

		Dst Expr
	}

	Write struct {
		Base `tlog:",embed"`

		Src Expr
	}

	Num struct {
		Base `tlog:",embed"`

		Value uint64
	}

	Ident struct {
		Base `tlog:",embed"`

		Def Decl
	}

	Index struct {
		Base `tlog:",embed"`

		Def   Decl
		Index Expr
	}

	Op int

	Binary struct {
		Base `tlog:",embed"`

		Op   Op
		L, R Expr
	}
)

const (
	ByRef Mode = iota
	ByValue
)

const (
	Add Op = iota
	Sub
	Mul
	Div
	Mod
	Eq
	Ne
	Lt
	Gt
	Le
	Ge
)

var opSymbols = map[string]Op{
	"+":  Add,
	"-":  Sub,
	"*":  Mul,
	"/":  Div,
	"%":  Mod,
	"=":  Eq,
	"!=": Ne,
	"<":  Lt,
	">":  Gt,
	"<=": Le,
	">=": Ge,
}

func (b Base) Pos() Base { return b }

// Main returns the program entry declaration.
func (f *File) Main() *Proc {
	for _, p := range f.Decls {
		if p.IsMain {
			return p
		}
	}

	return nil
}

func (op Op) Relational() bool { return op >= Eq }

// ParseOp returns the operator spelled s.
func ParseOp(s string) (Op, bool) {
	op, ok := opSymbols[s]

	return op, ok
}
