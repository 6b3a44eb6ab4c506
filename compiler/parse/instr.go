package parse

import (
	"context"

	"tlog.app/go/errors"

	"github.com/slowlang/glang/compiler/lir"
)

type (
	// Instruction parses a single machine instruction into *lir.Instr.
	Instruction struct{}
)

var instruction = AllOf{
	Mnemonic{},
	Optional{Spaced(AnyOf{Register{}, Num{}}, SpaceTab)},
}

func (Instruction) Parse(ctx context.Context, b []byte, st int) (x any, i int, err error) {
	x, i, err = instruction.Parse(ctx, b, st)
	if err != nil {
		return nil, i, err
	}

	l := x.([]any)
	in := &lir.Instr{Op: l[0].(lir.Op)}

	switch arg := l[1].(type) {
	case lir.Reg:
		if !in.Op.HasReg() {
			return nil, st, errors.New("%v takes no register", in.Op)
		}

		in.Reg = arg
	case int:
		if !in.Op.IsJump() {
			return nil, st, errors.New("%v takes no address", in.Op)
		}

		in.Addr = arg
	case None:
		if in.Op.HasReg() || in.Op.IsJump() {
			return nil, i, errors.New("%v: argument expected", in.Op)
		}
	default:
		panic(arg)
	}

	return in, i, nil
}
