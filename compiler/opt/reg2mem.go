package opt

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/glang/compiler/ir"
	"github.com/slowlang/glang/compiler/set"
)

// RegsToMem makes every value producing instruction store its result
// into its own spill variable and every user reload it right before the use.
// Values never stay in registers across instructions after that.
// It returns the number of spill variables created.
func RegsToMem(ctx context.Context, f *ir.Func) (spills int) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "opt: regs to mem", "func", f.Name)
	defer tr.Finish("spills", &spills)

	var fills set.Bits[ir.ID]

	f.Walk(func(b ir.BlockID) {
		code := append([]ir.ID{}, f.Blocks[b].Code...)

		for _, id := range code {
			if fills.IsSet(id) {
				continue
			}

			if !spilled(f.X(id)) {
				continue
			}

			spill(f, id, &fills)
			spills++
		}
	})

	if tr.If("dump_reg2mem") {
		tr.Printw("fills", "fills", &fills)
	}

	return spills
}

func spill(f *ir.Func, id ir.ID, fills *set.Bits[ir.ID]) {
	l := f.Instrs[id].Loc

	v := f.NewVar(l, "spill", ir.Local, 1, false)
	f.Var(v).Spill = true

	users := append([]ir.ID{}, f.Refs(id)...)

	for i, u := range users {
		if contains(users[:i], u) {
			continue
		}

		fill := f.New(f.Instrs[u].Loc, &ir.Load{Src: v})
		f.InsertBefore(u, fill)
		fills.Set(fill)

		f.ReplaceUse(u, id, fill)
	}

	st := f.New(l, &ir.Store{Dst: v, Src: id})
	f.InsertAfter(id, st)
}

// spilled reports whether x produces a value to be spilled.
func spilled(x any) bool {
	switch x := x.(type) {
	case *ir.ALU, *ir.Const, *ir.Read,
		*ir.Load, *ir.LoadIndirect, *ir.LoadPair,
		*ir.ElemAddr, *ir.ElemAddrIndirect:
		return true
	case *ir.Store, *ir.StoreIndirect, *ir.Write,
		*ir.Branch, *ir.BranchIf, *ir.Call, *ir.Ret, *ir.End:
		return false
	default:
		panic(x)
	}
}

// CheckSpilled verifies the state RegsToMem leaves a function in:
// every value producer is used only by a store into its own spill variable
// and that variable is only stored once and reloaded.
func CheckSpilled(f *ir.Func) (err error) {
	f.Walk(func(b ir.BlockID) {
		for _, id := range f.Blocks[b].Code {
			if err != nil {
				return
			}

			if !spilled(f.X(id)) || isFill(f, id) {
				continue
			}

			refs := f.Refs(id)
			if len(refs) != 1 {
				err = errors.New("instruction %d: %d users", id, len(refs))
				return
			}

			st, ok := f.X(refs[0]).(*ir.Store)
			if !ok || st.Src != id || f.Var(st.Dst) == nil {
				err = errors.New("instruction %d: not spilled", id)
				return
			}

			for _, r := range f.Refs(st.Dst) {
				switch x := f.X(r).(type) {
				case *ir.Store:
					if r != refs[0] {
						err = errors.New("instruction %d: spill variable %d stored twice", id, st.Dst)
						return
					}
				case *ir.Load:
				default:
					err = errors.New("instruction %d: spill variable %d used by %T", id, st.Dst, x)
					return
				}
			}
		}
	})

	return err
}

func isFill(f *ir.Func, id ir.ID) bool {
	l, ok := f.X(id).(*ir.Load)

	return ok && f.Var(l.Src) != nil && f.Var(l.Src).Spill
}

func contains(l []ir.ID, x ir.ID) bool {
	for _, y := range l {
		if y == x {
			return true
		}
	}

	return false
}
