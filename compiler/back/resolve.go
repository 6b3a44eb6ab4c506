package back

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/glang/compiler/lir"
)

// Resolve assigns every instruction its position as an address
// and patches jumps to their targets.
func Resolve(ctx context.Context, p *lir.Program) {
	tr := tlog.SpanFromContext(ctx)

	patched := 0

	for i, x := range p.Code {
		for _, j := range x.Incoming {
			j.Addr = i
			patched++
		}
	}

	tr.V("resolve").Printw("resolved", "instrs", len(p.Code), "patched", patched)
}
