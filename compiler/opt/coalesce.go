package opt

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/glang/compiler/ir"
)

type (
	rule struct {
		name  string
		apply func(f *ir.Func, code []ir.ID, i int) bool
	}
)

// Patterns of a spill store followed by reloads.
// Each one removes at least one instruction
// and fires only if the variable has exactly the users named.
var rules = []rule{
	{"forward", forward},
	{"reorder", reorder},
	{"store_load_store", storeLoadStore},
	{"round_trip", roundTrip},
	{"load_pair", loadPair},
	{"double_reload", doubleReload},
}

// Coalesce removes redundant spill and reload pairs until nothing changes
// and then prunes unused locals.
// It returns the number of rewrites made.
func Coalesce(ctx context.Context, f *ir.Func) (n int) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "opt: coalesce", "func", f.Name, "size", f.Size())
	defer tr.Finish("rewrites", &n)

	fired := make(map[string]int)
	rounds := 0

	for progress := true; progress; rounds++ {
		progress = false

		f.Walk(func(b ir.BlockID) {
			for i := 0; i < len(f.Blocks[b].Code); {
				r := match(f, f.Blocks[b].Code, i)
				if r == nil {
					i++
					continue
				}

				if tr.If("coalesce") {
					tr.Printw("fired", "rule", r.name, "block", b, "pos", i)
				}

				fired[r.name]++
				n++
				progress = true
			}
		})
	}

	pruned := pruneLocals(f)

	tr.Printw("coalesced", "rounds", rounds, "fired", fired, "pruned_locals", pruned, "size", f.Size())

	return n
}

func match(f *ir.Func, code []ir.ID, i int) *rule {
	for j := range rules {
		if rules[j].apply(f, code, i) {
			return &rules[j]
		}
	}

	return nil
}

// forward:
//
//	l = load x
//	store v, l
//	m = load v
//
// uses of m take l directly.
func forward(f *ir.Func, code []ir.ID, i int) bool {
	l, _ := at[ir.Load](f, code, i)
	s, st := at[ir.Store](f, code, i+1)
	m, ld := at[ir.Load](f, code, i+2)

	if l == ir.Nil || st == nil || ld == nil {
		return false
	}

	v := st.Dst

	if st.Src != l || ld.Src != v || !users(f, v, 2) {
		return false
	}

	f.ReplaceUses(m, l)
	f.Erase(m)
	f.Erase(s)

	return true
}

// reorder:
//
//	l1 = load x
//	store v, l1
//	l2 = load y
//	l3 = load v
//
// becomes l2, l1 and uses of l3 take l1.
// Accumulator and secondary register end up holding the same values.
func reorder(f *ir.Func, code []ir.ID, i int) bool {
	l1, x1 := at[ir.Load](f, code, i)
	s, st := at[ir.Store](f, code, i+1)
	l2, x2 := at[ir.Load](f, code, i+2)
	l3, x3 := at[ir.Load](f, code, i+3)

	if x1 == nil || st == nil || x2 == nil || x3 == nil {
		return false
	}

	v := st.Dst

	if st.Src != l1 || x3.Src != v || x2.Src == v || !users(f, v, 2) {
		return false
	}

	if f.Var(x1.Src) == nil || f.Var(x2.Src) == nil {
		return false
	}

	f.ReplaceUses(l3, l1)
	f.Erase(l3)
	f.Erase(s)

	f.Detach(l1)
	f.InsertAfter(l2, l1)

	return true
}

// storeLoadStore:
//
//	x
//	store v, x
//	l = load v
//	store w, l
//
// stores x to w directly.
func storeLoadStore(f *ir.Func, code []ir.ID, i int) bool {
	s, st := at[ir.Store](f, code, i)
	l, ld := at[ir.Load](f, code, i+1)
	_, st2 := at[ir.Store](f, code, i+2)

	if st == nil || ld == nil || st2 == nil {
		return false
	}

	v := st.Dst

	if !produced(code, i, st.Src) || ld.Src != v || st2.Src != l || f.Var(st2.Dst) == nil || !users(f, v, 2) {
		return false
	}

	f.ReplaceUses(l, st.Src)
	f.Erase(l)
	f.Erase(s)

	return true
}

// roundTrip:
//
//	x
//	store v, x
//	l = load v
//
// uses of l take x.
func roundTrip(f *ir.Func, code []ir.ID, i int) bool {
	s, st := at[ir.Store](f, code, i)
	l, ld := at[ir.Load](f, code, i+1)

	if st == nil || ld == nil {
		return false
	}

	v := st.Dst

	if !produced(code, i, st.Src) || ld.Src != v || !users(f, v, 2) {
		return false
	}

	f.ReplaceUses(l, st.Src)
	f.Erase(l)
	f.Erase(s)

	return true
}

// loadPair:
//
//	x
//	store v, x
//	a = load m
//	b = load v
//
// becomes x, load_pair m. Uses of a take the pair and uses of b take x.
func loadPair(f *ir.Func, code []ir.ID, i int) bool {
	s, st := at[ir.Store](f, code, i)
	a, la := at[ir.Load](f, code, i+1)
	b, lb := at[ir.Load](f, code, i+2)

	if st == nil || la == nil || lb == nil {
		return false
	}

	v := st.Dst

	if !produced(code, i, st.Src) || lb.Src != v || la.Src == v || f.Var(la.Src) == nil || !users(f, v, 2) {
		return false
	}

	p := f.New(f.Instrs[a].Loc, &ir.LoadPair{Src: la.Src})
	f.InsertBefore(b, p)

	f.ReplaceUses(b, st.Src)
	f.ReplaceUses(a, p)

	f.Erase(a)
	f.Erase(b)
	f.Erase(s)

	return true
}

// doubleReload:
//
//	x
//	store v, x
//	a = load v
//	b = load v
//
// both reloads collapse into one load_pair v.
func doubleReload(f *ir.Func, code []ir.ID, i int) bool {
	_, st := at[ir.Store](f, code, i)
	a, la := at[ir.Load](f, code, i+1)
	b, lb := at[ir.Load](f, code, i+2)

	if st == nil || la == nil || lb == nil {
		return false
	}

	v := st.Dst

	if !produced(code, i, st.Src) || la.Src != v || lb.Src != v || !users(f, v, 3) {
		return false
	}

	p := f.New(f.Instrs[a].Loc, &ir.LoadPair{Src: v})
	f.InsertBefore(a, p)

	f.ReplaceUses(a, p)
	f.ReplaceUses(b, st.Src)

	f.Erase(a)
	f.Erase(b)

	return true
}

func pruneLocals(f *ir.Func) (pruned int) {
	locals := f.Locals[:0]

	for _, id := range f.Locals {
		if len(f.Refs(id)) != 0 {
			locals = append(locals, id)
			continue
		}

		f.Erase(id)
		pruned++
	}

	f.Locals = locals

	return pruned
}

// users reports whether v is a frame variable with exactly n users.
func users(f *ir.Func, v ir.ID, n int) bool {
	x := f.Var(v)

	return x != nil && !x.ByRef && len(f.Refs(v)) == n
}

// produced reports whether x is computed right before code[i],
// so it's still in the accumulator.
func produced(code []ir.ID, i int, x ir.ID) bool {
	return i > 0 && code[i-1] == x
}

func at[T any](f *ir.Func, code []ir.ID, i int) (ir.ID, *T) {
	if i < 0 || i >= len(code) {
		return ir.Nil, nil
	}

	x, ok := f.X(code[i]).(*T)
	if !ok {
		return ir.Nil, nil
	}

	return code[i], x
}
