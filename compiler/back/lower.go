package back

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/glang/compiler/ir"
	"github.com/slowlang/glang/compiler/lir"
)

type (
	lowerer struct {
		vars map[varKey]*lir.Var
		next int

		funcs  map[*ir.Func]*lir.Instr
		blocks map[blockKey]*lir.Instr

		jumps []jumpFix
		calls []callFix
	}

	funcLowerer struct {
		*lowerer

		f    *ir.Func
		ret  *lir.Var
		code []*lir.Instr

		loc        ir.Loc
		blockStart bool
		first      *lir.Instr
	}

	varKey struct {
		f  *ir.Func
		id ir.ID
	}

	blockKey struct {
		f *ir.Func
		b ir.BlockID
	}

	jumpFix struct {
		j *lir.Instr
		blockKey
	}

	callFix struct {
		j *lir.Instr
		f *ir.Func
	}
)

// Lower translates the program into machine instructions.
// The main program goes first, other functions follow in declaration order.
// Jump targets are linked but addresses are not resolved.
func Lower(ctx context.Context, p *ir.Program) (_ *lir.Program, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "back: lower", "funcs", len(p.Funcs))
	defer tr.Finish("err", &err)

	main := p.Main()
	if main == nil {
		return nil, errors.New("no main program")
	}

	l := &lowerer{
		vars:   make(map[varKey]*lir.Var),
		funcs:  make(map[*ir.Func]*lir.Instr),
		blocks: make(map[blockKey]*lir.Instr),
	}

	frames := make(map[*ir.Func][]*lir.Var, len(p.Funcs))

	for _, f := range p.Funcs {
		frames[f] = l.buildFrame(f)
	}

	order := []*ir.Func{main}

	for _, f := range p.Funcs {
		if f != main {
			order = append(order, f)
		}
	}

	res := &lir.Program{}

	for _, f := range order {
		fl := &funcLowerer{
			lowerer: l,
			f:       f,
			loc:     f.Loc,
		}

		fl.lowerFunc()

		if len(fl.code) == 0 {
			return nil, errors.New("func %v: no code", f.Name)
		}

		l.funcs[f] = fl.code[0]

		res.Funcs = append(res.Funcs, &lir.Func{
			Name:  f.Name,
			Start: len(res.Code),
			Size:  len(fl.code),
			Frame: frames[f],
			Ret:   fl.ret,
		})

		res.Code = append(res.Code, fl.code...)

		tr.Printw("lowered func", "name", f.Name, "instrs", len(fl.code))
	}

	for _, j := range l.jumps {
		t, ok := l.blocks[j.blockKey]
		if !ok {
			panic(j.b)
		}

		j.j.SetTarget(t)
	}

	for _, c := range l.calls {
		t, ok := l.funcs[c.f]
		if !ok {
			panic(c.f.Name)
		}

		c.j.SetTarget(t)
	}

	res.Memory = l.next

	tr.Printw("lowered", "instrs", len(res.Code), "memory", res.Memory, "jumps", len(l.jumps), "calls", len(l.calls))

	return res, nil
}

// buildFrame allocates cells for locals and then parameters.
func (l *lowerer) buildFrame(f *ir.Func) (frame []*lir.Var) {
	alloc := func(id ir.ID) {
		v := f.Var(id)
		if v == nil {
			panic(id)
		}

		x := l.alloc(v.Name, v.Size, v.ByRef)

		l.vars[varKey{f: f, id: id}] = x
		frame = append(frame, x)
	}

	for _, id := range f.Locals {
		alloc(id)
	}

	for _, id := range f.Params {
		alloc(id)
	}

	return frame
}

func (l *lowerer) alloc(name string, size int, indirect bool) *lir.Var {
	if size < 1 {
		size = 1
	}

	v := &lir.Var{
		Name:     name,
		Addr:     l.next,
		Size:     size,
		Indirect: indirect,
	}

	l.next += size

	return v
}

func (l *funcLowerer) lowerFunc() {
	if !l.f.IsMain {
		l.ret = l.alloc("ret", 1, false)

		l.constant(uint64(l.ret.Addr), lir.B)
		l.emit(lir.Store, lir.B)
	}

	l.f.Walk(l.lowerBlock)
}

func (l *funcLowerer) lowerBlock(b ir.BlockID) {
	l.blockStart = true

	for _, id := range l.f.Blocks[b].Code {
		l.loc = l.f.Instrs[id].Loc

		l.lowerInstr(l.f.X(id))
	}

	if l.blockStart {
		panic(b)
	}

	l.blocks[blockKey{f: l.f, b: b}] = l.first
}

func (l *funcLowerer) lowerInstr(x any) {
	switch x := x.(type) {
	case *ir.Const:
		l.constant(x.Value, lir.A)
	case *ir.ElemAddr:
		// index is in a
		l.constant(uint64(l.addr(x.Var)), lir.B)
		l.emit(lir.Add, lir.B)
	case *ir.ElemAddrIndirect:
		l.emit(lir.Put, lir.B)
		l.constant(uint64(l.addr(x.Var)), lir.A)
		l.emit(lir.Load, lir.A)
		l.emit(lir.Add, lir.B)
	case *ir.Store:
		if l.f.Var(x.Dst) != nil {
			l.constant(uint64(l.addr(x.Dst)), lir.B)
		}

		// address is in b
		l.emit(lir.Store, lir.B)
	case *ir.StoreIndirect:
		l.emit(lir.Put, lir.C)
		l.constant(uint64(l.addr(x.Dst)), lir.A)
		l.emit(lir.Load, lir.A)
		l.emit(lir.Put, lir.B)
		l.emit(lir.Get, lir.C)
		l.emit(lir.Store, lir.B)
	case *ir.Load:
		if l.f.Var(x.Src) != nil {
			l.emit(lir.Put, lir.B)
			l.constant(uint64(l.addr(x.Src)), lir.A)
		}

		l.emit(lir.Load, lir.A)
	case *ir.LoadIndirect:
		l.emit(lir.Put, lir.B)
		l.constant(uint64(l.addr(x.Src)), lir.A)
		l.emit(lir.Load, lir.A)
		l.emit(lir.Load, lir.A)
	case *ir.LoadPair:
		l.emit(lir.Put, lir.H)
		l.constant(uint64(l.addr(x.Src)), lir.A)
		l.emit(lir.Load, lir.A)
		l.emit(lir.Put, lir.B)
		l.emit(lir.Get, lir.H)
	case *ir.ALU:
		l.alu(x.Op)
	case *ir.End:
		l.emit(lir.Halt, lir.A)
	case *ir.Ret:
		// strk stored the address of itself, jump over the call jump
		l.constant(uint64(l.ret.Addr), lir.A)
		l.emit(lir.Load, lir.A)
		l.emit(lir.Inc, lir.A)
		l.emit(lir.Inc, lir.A)
		l.emit(lir.Jumpr, lir.A)
	case *ir.Call:
		l.call(x)
	case *ir.Branch:
		j := l.emit(lir.Jump, lir.A)
		l.jumps = append(l.jumps, jumpFix{j: j, blockKey: blockKey{f: l.f, b: x.Target}})
	case *ir.BranchIf:
		op := lir.Jpos
		if x.Kind == ir.Zero {
			op = lir.Jzero
		}

		j := l.emit(op, lir.A)
		l.jumps = append(l.jumps, jumpFix{j: j, blockKey: blockKey{f: l.f, b: x.Then}})

		j = l.emit(lir.Jump, lir.A)
		l.jumps = append(l.jumps, jumpFix{j: j, blockKey: blockKey{f: l.f, b: x.Else}})
	case *ir.Read:
		l.emit(lir.Put, lir.B)
		l.emit(lir.Read, lir.A)
	case *ir.Write:
		l.emit(lir.Write, lir.A)
	default:
		panic(x)
	}
}

func (l *funcLowerer) call(x *ir.Call) {
	callee := x.Func

	if len(x.Args) != len(callee.Params) {
		panic(x)
	}

	for i, arg := range x.Args {
		p := l.lookup(callee, callee.Params[i])
		a := l.lookup(l.f, arg)

		switch {
		case p.Indirect && a.Indirect:
			l.constant(uint64(a.Addr), lir.A)
			l.emit(lir.Load, lir.A)
			l.constant(uint64(p.Addr), lir.B)
			l.emit(lir.Store, lir.B)
		case p.Indirect:
			l.constant(uint64(p.Addr), lir.B)
			l.constant(uint64(a.Addr), lir.A)
			l.emit(lir.Store, lir.B)
		default:
			l.constant(uint64(a.Addr), lir.A)
			l.emit(lir.Load, lir.A)

			if a.Indirect {
				l.emit(lir.Load, lir.A)
			}

			l.constant(uint64(p.Addr), lir.B)
			l.emit(lir.Store, lir.B)
		}
	}

	l.emit(lir.Strk, lir.A)

	j := l.emit(lir.Jump, lir.A)
	l.calls = append(l.calls, callFix{j: j, f: callee})
}

func (l *funcLowerer) addr(id ir.ID) int {
	return l.lookup(l.f, id).Addr
}

func (l *lowerer) lookup(f *ir.Func, id ir.ID) *lir.Var {
	v, ok := l.vars[varKey{f: f, id: id}]
	if !ok {
		panic(id)
	}

	return v
}

func (l *funcLowerer) emit(op lir.Op, r lir.Reg) *lir.Instr {
	x := &lir.Instr{
		Op:  op,
		Reg: r,
		Loc: l.loc,
	}

	if l.blockStart {
		l.first = x
		l.blockStart = false
	}

	l.code = append(l.code, x)

	return x
}
