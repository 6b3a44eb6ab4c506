package opt

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/glang/compiler/ir"
)

// Canonicalize rewrites eq, ge and le into their complements
// which the machine can test, swapping targets of the branches using them.
// Comparisons used by anything but a conditional branch panic.
// It returns the number of rewritten instructions.
func Canonicalize(ctx context.Context, f *ir.Func) (n int) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "opt: canonicalize", "func", f.Name)
	defer tr.Finish("rewritten", &n)

	f.Walk(func(b ir.BlockID) {
		for _, id := range f.Blocks[b].Code {
			x, ok := f.X(id).(*ir.ALU)
			if !ok || !x.Op.Relational() {
				continue
			}

			// comparison results are only tested by branches
			for _, u := range f.Refs(id) {
				if _, ok := f.X(u).(*ir.BranchIf); !ok {
					panic(u)
				}
			}

			op, ok := x.Op.Complement()
			if !ok {
				continue
			}

			x.Op = op
			n++

			for _, u := range f.Refs(id) {
				br := f.X(u).(*ir.BranchIf)
				br.Then, br.Else = br.Else, br.Then
			}
		}
	})

	return n
}
