package front

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/glang/compiler/ast"
	"github.com/slowlang/glang/compiler/ir"
)

type (
	builder struct {
		funcs map[*ast.Proc]*ir.Func

		f    *ir.Func
		defs map[ast.Decl]ir.ID
		cur  ir.BlockID
	}

	poser interface {
		Pos() ast.Base
	}
)

var ops = [...]ir.Op{
	ast.Add: ir.Add,
	ast.Sub: ir.Sub,
	ast.Mul: ir.Mul,
	ast.Div: ir.Div,
	ast.Mod: ir.Mod,
	ast.Eq:  ir.Eq,
	ast.Ne:  ir.Ne,
	ast.Lt:  ir.Lt,
	ast.Gt:  ir.Gt,
	ast.Le:  ir.Le,
	ast.Ge:  ir.Ge,
}

// Build lowers resolved tree into IR.
// Functions are in declaration order.
func Build(ctx context.Context, file *ast.File) (p *ir.Program, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "front: build", "decls", len(file.Decls))
	defer tr.Finish("err", &err)

	mains := 0

	for _, d := range file.Decls {
		if d.IsMain {
			mains++
		}
	}

	if mains != 1 {
		return nil, errors.New("expected exactly one main program, got %d", mains)
	}

	b := &builder{
		funcs: make(map[*ast.Proc]*ir.Func, len(file.Decls)),
	}

	p = &ir.Program{}

	for _, d := range file.Decls {
		f := ir.NewFunc(d.Name, loc(d))
		f.IsMain = d.IsMain

		b.funcs[d] = f
		p.Funcs = append(p.Funcs, f)
	}

	for _, d := range file.Decls {
		b.buildFunc(d)

		tr.Printw("built func", "name", d.Name, "blocks", len(b.f.Blocks), "instrs", len(b.f.Instrs))

		if tr.If("dump_ir") {
			tr.Printw("ir", "func", d.Name, "code", b.f.Dump(nil))
		}
	}

	return p, nil
}

func (b *builder) buildFunc(d *ast.Proc) {
	f := b.funcs[d]

	b.f = f
	b.defs = make(map[ast.Decl]ir.ID)

	for _, p := range d.Params {
		byRef := p.Mode == ast.ByRef || p.Array

		b.defs[p] = f.NewVar(loc(p), p.Name, ir.Param, 1, byRef)
	}

	for _, v := range d.Locals {
		size := v.Size
		if size < 1 {
			size = 1
		}

		b.defs[v] = f.NewVar(loc(v), v.Name, ir.Local, size, false)
	}

	f.Entry = f.NewBlock()
	b.cur = f.Entry

	b.stmts(d.Body)

	if d.IsMain {
		b.emit(d, &ir.End{})
	} else {
		b.emit(d, &ir.Ret{})
	}
}

func (b *builder) stmts(l []ast.Stmt) {
	for _, s := range l {
		b.stmt(s)
	}
}

func (b *builder) stmt(s ast.Stmt) {
	f := b.f

	switch s := s.(type) {
	case *ast.Assign:
		dst := b.address(s.Dst)
		src := b.expr(s.Src)

		b.emit(s, &ir.Store{Dst: dst, Src: src})
	case *ast.Read:
		if id, ok := s.Dst.(*ast.Ident); ok && f.Var(b.def(id.Def)).ByRef {
			r := b.emit(s, &ir.Read{})
			b.emit(s, &ir.StoreIndirect{Dst: b.def(id.Def), Src: r})

			break
		}

		dst := b.address(s.Dst)
		r := b.emit(s, &ir.Read{})

		b.emit(s, &ir.Store{Dst: dst, Src: r})
	case *ast.Write:
		src := b.expr(s.Src)

		b.emit(s, &ir.Write{Src: src})
	case *ast.If:
		then := f.NewBlock()
		els := f.NewBlock()
		merge := f.NewBlock()

		cond := b.cond(s.Cond)
		b.emit(s, &ir.BranchIf{Kind: ir.Positive, Cond: cond, Then: then, Else: els})

		b.cur = then
		b.stmts(s.Then)
		b.emit(s, &ir.Branch{Target: merge})

		b.cur = els
		b.stmts(s.Else)
		b.emit(s, &ir.Branch{Target: merge})

		b.cur = merge
	case *ast.While:
		head := f.NewBlock()
		body := f.NewBlock()
		merge := f.NewBlock()

		b.emit(s, &ir.Branch{Target: head})

		b.cur = head
		cond := b.cond(s.Cond)
		b.emit(s, &ir.BranchIf{Kind: ir.Positive, Cond: cond, Then: body, Else: merge})

		b.cur = body
		b.stmts(s.Body)
		b.emit(s, &ir.Branch{Target: head})

		b.cur = merge
	case *ast.Repeat:
		body := f.NewBlock()
		merge := f.NewBlock()

		b.emit(s, &ir.Branch{Target: body})

		b.cur = body
		b.stmts(s.Body)

		cond := b.cond(s.Cond)
		b.emit(s, &ir.BranchIf{Kind: ir.Positive, Cond: cond, Then: merge, Else: body})

		b.cur = merge
	case *ast.Call:
		callee, ok := b.funcs[s.Proc]
		if !ok {
			panic(s.Proc)
		}

		args := make([]ir.ID, len(s.Args))

		for i, a := range s.Args {
			id, ok := a.(*ast.Ident)
			if !ok {
				panic(a)
			}

			args[i] = b.def(id.Def)
		}

		b.emit(s, &ir.Call{Func: callee, Args: args})
	default:
		panic(s)
	}
}

// cond builds a branch condition, the only place a comparison may appear.
func (b *builder) cond(x ast.Expr) ir.ID {
	if x, ok := x.(*ast.Binary); ok && x.Op.Relational() {
		return b.binary(x)
	}

	return b.expr(x)
}

func (b *builder) expr(x ast.Expr) ir.ID {
	switch x := x.(type) {
	case *ast.Num:
		return b.emit(x, &ir.Const{Value: x.Value})
	case *ast.Ident:
		v := b.def(x.Def)

		if b.f.Var(v).ByRef {
			return b.emit(x, &ir.LoadIndirect{Src: v})
		}

		return b.emit(x, &ir.Load{Src: v})
	case *ast.Index:
		addr := b.elemAddr(x)

		return b.emit(x, &ir.Load{Src: addr})
	case *ast.Binary:
		if x.Op.Relational() {
			panic(x)
		}

		return b.binary(x)
	default:
		panic(x)
	}
}

func (b *builder) binary(x *ast.Binary) ir.ID {
	r := b.expr(x.R)
	l := b.expr(x.L)

	return b.emit(x, &ir.ALU{Op: ops[x.Op], L: l, R: r})
}

// address returns a Variable or an instruction computing the address to store to.
func (b *builder) address(x ast.Expr) ir.ID {
	switch x := x.(type) {
	case *ast.Ident:
		v := b.def(x.Def)

		if b.f.Var(v).ByRef {
			return b.emit(x, &ir.Load{Src: v})
		}

		return v
	case *ast.Index:
		return b.elemAddr(x)
	default:
		panic(x)
	}
}

func (b *builder) elemAddr(x *ast.Index) ir.ID {
	idx := b.expr(x.Index)
	v := b.def(x.Def)

	if b.f.Var(v).ByRef {
		return b.emit(x, &ir.ElemAddrIndirect{Var: v, Index: idx})
	}

	return b.emit(x, &ir.ElemAddr{Var: v, Index: idx})
}

func (b *builder) def(d ast.Decl) ir.ID {
	id, ok := b.defs[d]
	if !ok {
		panic(d)
	}

	return id
}

func (b *builder) emit(n any, x any) ir.ID {
	id := b.f.New(loc(n), x)
	b.f.Append(b.cur, id)

	return id
}

func loc(n any) ir.Loc {
	p, ok := n.(poser)
	if !ok {
		return ir.Loc{}
	}

	pos := p.Pos()

	return ir.Loc{Line: pos.Line, Col: pos.Col}
}
