package ir

import (
	"github.com/nikandfor/hacked/hfmt"
)

// Dump appends human readable form of f for debugging.
func (f *Func) Dump(b []byte) []byte {
	b = hfmt.Appendf(b, "func %s", f.Name)

	if f.IsMain {
		b = append(b, " main"...)
	}

	b = append(b, '\n')

	for _, id := range f.Params {
		b = f.dumpVar(b, id)
	}

	for _, id := range f.Locals {
		b = f.dumpVar(b, id)
	}

	f.Walk(func(bid BlockID) {
		b = hfmt.Appendf(b, "b%d:\n", bid)

		for _, id := range f.Blocks[bid].Code {
			b = hfmt.Appendf(b, "\t%%%d = ", id)
			b = f.dumpInstr(b, f.Instrs[id].X)
			b = hfmt.Appendf(b, "\t; refs %v\n", f.Instrs[id].Refs)
		}
	})

	return b
}

func (f *Func) dumpVar(b []byte, id ID) []byte {
	v := f.Var(id)

	b = hfmt.Appendf(b, "\t%v %%%d %s", v.Kind, id, v.Name)

	if v.Size > 1 {
		b = hfmt.Appendf(b, "[%d]", v.Size)
	}

	if v.ByRef {
		b = append(b, " ref"...)
	}

	return hfmt.Appendf(b, "\t; refs %d\n", len(f.Instrs[id].Refs))
}

func (f *Func) dumpInstr(b []byte, x any) []byte {
	switch x := x.(type) {
	case *Const:
		return hfmt.Appendf(b, "const %d", x.Value)
	case *ElemAddr:
		return hfmt.Appendf(b, "elemaddr %%%d, %%%d", x.Var, x.Index)
	case *ElemAddrIndirect:
		return hfmt.Appendf(b, "elemaddr_indirect %%%d, %%%d", x.Var, x.Index)
	case *Store:
		return hfmt.Appendf(b, "store %%%d, %%%d", x.Dst, x.Src)
	case *StoreIndirect:
		return hfmt.Appendf(b, "store_indirect %%%d, %%%d", x.Dst, x.Src)
	case *Load:
		return hfmt.Appendf(b, "load %%%d", x.Src)
	case *LoadIndirect:
		return hfmt.Appendf(b, "load_indirect %%%d", x.Src)
	case *LoadPair:
		return hfmt.Appendf(b, "load_pair %%%d", x.Src)
	case *ALU:
		return hfmt.Appendf(b, "%v %%%d, %%%d", x.Op, x.L, x.R)
	case *End:
		return append(b, "end"...)
	case *Ret:
		return append(b, "ret"...)
	case *Call:
		return hfmt.Appendf(b, "call %s %v", x.Func.Name, x.Args)
	case *Branch:
		return hfmt.Appendf(b, "br b%d", x.Target)
	case *BranchIf:
		return hfmt.Appendf(b, "%v %%%d, b%d, b%d", x.Kind, x.Cond, x.Then, x.Else)
	case *Read:
		return append(b, "read"...)
	case *Write:
		return hfmt.Appendf(b, "write %%%d", x.Src)
	default:
		panic(x)
	}
}
