package front

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/glang/compiler/ast"
	"github.com/slowlang/glang/compiler/ir"
)

func decode(t *testing.T, src string) *ast.File {
	t.Helper()

	f, err := ast.Decode(context.Background(), []byte(src))
	require.NoError(t, err)

	return f
}

func TestBuildShapes(t *testing.T) {
	file := decode(t, `
procedures:
  - name: p
    params: [{name: x}, {name: t, array: true}, {name: k, value: true}]
    body:
      - assign: x
        value: {index: t, at: k}
      - read: x
      - read: k
main:
  locals: [{name: a}, {name: t, size: 4}]
  body:
    - if: {op: "<", l: a, r: 2}
      then: [{write: a}]
    - call: p
      args: [a, t, a]
`)

	p, err := Build(context.Background(), file)
	require.NoError(t, err)
	require.Len(t, p.Funcs, 2)

	for _, f := range p.Funcs {
		require.NoError(t, ir.Verify(f), "func %v", f.Name)
	}

	pf := p.Funcs[0]
	assert.False(t, pf.IsMain)
	require.Len(t, pf.Params, 3)
	assert.True(t, pf.Var(pf.Params[0]).ByRef)
	assert.True(t, pf.Var(pf.Params[1]).ByRef)
	assert.False(t, pf.Var(pf.Params[2]).ByRef)

	kinds := map[string]int{}

	for _, id := range pf.Blocks[pf.Entry].Code {
		switch pf.X(id).(type) {
		case *ir.ElemAddrIndirect:
			kinds["elem_indirect"]++
		case *ir.StoreIndirect:
			kinds["store_indirect"]++
		case *ir.Store:
			kinds["store"]++
		case *ir.Ret:
			kinds["ret"]++
		}
	}

	assert.Equal(t, map[string]int{"elem_indirect": 1, "store_indirect": 1, "store": 2, "ret": 1}, kinds)

	main := p.Main()
	require.NotNil(t, main)
	assert.Same(t, p.Funcs[1], main)
	assert.Len(t, main.Locals, 2)
	assert.Equal(t, 4, main.Var(main.Locals[1]).Size)

	// entry, then, else, merge
	assert.Len(t, main.Blocks, 4)
	assert.Equal(t, []ir.BlockID{0, 1, 3, 2}, main.Reachable())

	br, ok := main.X(main.Terminator(main.Entry)).(*ir.BranchIf)
	require.True(t, ok)
	assert.Equal(t, ir.Positive, br.Kind)

	merge := main.Blocks[3].Code
	_, ok = main.X(merge[len(merge)-1]).(*ir.End)
	assert.True(t, ok)

	require.Len(t, pf.Callers, 1)
	assert.Same(t, main, pf.Callers[0].Func)
}

func TestBuildOperandOrder(t *testing.T) {
	file := decode(t, `
main:
  locals: [{name: a}, {name: b}]
  body:
    - write: {op: "-", l: a, r: b}
`)

	p, err := Build(context.Background(), file)
	require.NoError(t, err)

	f := p.Main()
	code := f.Blocks[f.Entry].Code
	require.Len(t, code, 5)

	// rhs is loaded first
	rhs := f.X(code[0]).(*ir.Load)
	lhs := f.X(code[1]).(*ir.Load)
	alu := f.X(code[2]).(*ir.ALU)

	assert.Equal(t, f.Locals[1], rhs.Src)
	assert.Equal(t, f.Locals[0], lhs.Src)
	assert.Equal(t, ir.Sub, alu.Op)
	assert.Equal(t, code[1], alu.L)
	assert.Equal(t, code[0], alu.R)
}

func TestBuildMains(t *testing.T) {
	_, err := Build(context.Background(), &ast.File{})
	assert.Error(t, err)

	_, err = Build(context.Background(), &ast.File{Decls: []*ast.Proc{
		{Name: "a", IsMain: true},
		{Name: "b", IsMain: true},
	}})
	assert.Error(t, err)
}

func TestBuildLoops(t *testing.T) {
	file := decode(t, `
main:
  locals: [{name: i}]
  body:
    - while: {op: "<", l: i, r: 3}
      do:
        - assign: i
          value: {op: "+", l: i, r: 1}
    - repeat:
        - write: i
      until: {op: "=", l: i, r: 0}
`)

	p, err := Build(context.Background(), file)
	require.NoError(t, err)

	f := p.Main()
	require.NoError(t, ir.Verify(f))

	// entry, head, body, merge, repeat body, repeat merge
	require.Len(t, f.Blocks, 6)

	head := f.X(f.Terminator(1)).(*ir.BranchIf)
	assert.Equal(t, ir.BlockID(2), head.Then)
	assert.Equal(t, ir.BlockID(3), head.Else)

	until := f.X(f.Terminator(4)).(*ir.BranchIf)
	assert.Equal(t, ir.BlockID(5), until.Then)
	assert.Equal(t, ir.BlockID(4), until.Else)

	assert.Equal(t, []ir.BlockID{1}, f.Successors(2))
}

func TestBuildComparisonAsValue(t *testing.T) {
	a := &ast.Var{Name: "a"}

	cmp := &ast.Binary{Op: ast.Lt, L: &ast.Ident{Def: a}, R: &ast.Num{Value: 3}}

	file := &ast.File{Decls: []*ast.Proc{{
		Name:   "main",
		IsMain: true,
		Locals: []*ast.Var{a},
		Body:   []ast.Stmt{&ast.Write{Src: cmp}},
	}}}

	assert.Panics(t, func() { _, _ = Build(context.Background(), file) })

	file.Decls[0].Body = []ast.Stmt{&ast.While{Cond: cmp}}

	p, err := Build(context.Background(), file)
	require.NoError(t, err)
	require.NoError(t, ir.Verify(p.Main()))
}
