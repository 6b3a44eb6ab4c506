package parse

import (
	"context"
	"fmt"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/glang/compiler/lir"
)

type (
	Parser interface {
		Parse(ctx context.Context, b []byte, st int) (x any, i int, err error)
	}

	// PosError is a parse error at a text offset.
	PosError struct {
		Line, Col int
		Err       error
	}
)

// ListingFile reads a program listing from file.
func ListingFile(ctx context.Context, name string) ([]*lir.Instr, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(data), "name", name)

	return Listing(ctx, data)
}

// Listing parses one instruction per line. Jump targets are resolved
// addresses, # starts a comment.
func Listing(ctx context.Context, text []byte) (code []*lir.Instr, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "parse: listing", "size", len(text))
	defer tr.Finish("err", &err)

	p := Spaced(Instruction{}, SpaceAll)

	i := SpaceAll.Skip(text, 0)

	for i < len(text) {
		x, j, err := p.Parse(ctx, text, i)
		if err != nil {
			return nil, newPosError(text, j, err)
		}

		code = append(code, x.(*lir.Instr))

		i = SpaceAll.Skip(text, j)
	}

	for n, x := range code {
		if x.Op.IsJump() && (x.Addr < 0 || x.Addr >= len(code)) {
			return nil, errors.New("instruction %d: jump out of program: %d", n, x.Addr)
		}
	}

	tr.Printw("parsed", "instrs", len(code))

	return code, nil
}

func newPosError(b []byte, pos int, err error) PosError {
	e := PosError{Line: 1, Col: 1, Err: err}

	for _, c := range b[:pos] {
		if c == '\n' {
			e.Line++
			e.Col = 1
		} else {
			e.Col++
		}
	}

	return e
}

func (e PosError) Error() string {
	return fmt.Sprintf("%d:%d: %v", e.Line, e.Col, e.Err)
}

func (e PosError) Unwrap() error { return e.Err }
