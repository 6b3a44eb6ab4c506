package parse

import (
	"context"

	"tlog.app/go/errors"

	"github.com/slowlang/glang/compiler/lir"
)

type (
	// Mnemonic parses an upper case instruction name into lir.Op.
	Mnemonic struct{}

	// Register parses a register name into lir.Reg.
	Register struct{}
)

func (Mnemonic) Parse(ctx context.Context, b []byte, st int) (x any, i int, err error) {
	i = st

	for i < len(b) && b[i] >= 'A' && b[i] <= 'Z' {
		i++
	}

	if i == st {
		return nil, st, errors.New("mnemonic expected")
	}

	op, ok := lir.ParseOp(string(b[st:i]))
	if !ok {
		return nil, st, errors.New("unknown instruction %q", b[st:i])
	}

	return op, i, nil
}

func (Register) Parse(ctx context.Context, b []byte, st int) (x any, i int, err error) {
	if st == len(b) {
		return nil, st, errors.New("register expected")
	}

	i = st + 1

	if i < len(b) && isWord(b[i]) {
		return nil, st, errors.New("register expected")
	}

	r, ok := lir.ParseReg(string(b[st:i]))
	if !ok {
		return nil, st, errors.New("register expected")
	}

	return r, i, nil
}

func isWord(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
