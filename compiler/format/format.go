package format

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/slowlang/glang/compiler/ir"
	"github.com/slowlang/glang/compiler/lir"
)

type (
	Option func(*formatter)

	formatter struct {
		locs  bool
		funcs bool
	}
)

// WithLocations appends source location comment to each instruction.
func WithLocations(f *formatter) { f.locs = true }

// WithFuncs marks function starts with comments.
func WithFuncs(f *formatter) { f.funcs = true }

// Format appends text form of x.
// Programs are printed one instruction per line with jump targets as addresses.
func Format(ctx context.Context, b []byte, x any, opts ...Option) ([]byte, error) {
	var f formatter

	for _, o := range opts {
		o(&f)
	}

	switch x := x.(type) {
	case *lir.Program:
		return f.program(b, x), nil
	case []*lir.Instr:
		return f.code(b, x, nil), nil
	case *ir.Program:
		for _, fn := range x.Funcs {
			b = fn.Dump(b)
		}

		return b, nil
	case *ir.Func:
		return x.Dump(b), nil
	default:
		return nil, errors.New("unsupported type: %T", x)
	}
}

func (f *formatter) program(b []byte, p *lir.Program) []byte {
	starts := map[int]*lir.Func{}

	if f.funcs {
		for _, fn := range p.Funcs {
			starts[fn.Start] = fn
		}
	}

	return f.code(b, p.Code, starts)
}

func (f *formatter) code(b []byte, code []*lir.Instr, starts map[int]*lir.Func) []byte {
	for i, x := range code {
		if fn, ok := starts[i]; ok {
			b = hfmt.Appendf(b, "# %s\n", fn.Name)
		}

		b = Instr(b, x)

		if f.locs {
			b = hfmt.Appendf(b, "\t# %d %v", i, x.Loc)
		}

		b = append(b, '\n')
	}

	return b
}

// Instr appends instruction mnemonic without a newline.
func Instr(b []byte, x *lir.Instr) []byte {
	switch {
	case x.Op.IsJump():
		return hfmt.Appendf(b, "%v %d", x.Op, x.Addr)
	case x.Op.HasReg():
		return hfmt.Appendf(b, "%v %v", x.Op, x.Reg)
	default:
		return hfmt.Appendf(b, "%v", x.Op)
	}
}
