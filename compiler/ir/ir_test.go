package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefs(t *testing.T) {
	f := NewFunc("f", Loc{})
	f.Entry = f.NewBlock()

	x := f.NewVar(Loc{}, "x", Local, 1, false)

	l := f.New(Loc{}, &Load{Src: x})
	f.Append(f.Entry, l)

	w := f.New(Loc{}, &Write{Src: l})
	f.Append(f.Entry, w)

	f.Append(f.Entry, f.New(Loc{}, &End{}))

	require.NoError(t, Verify(f))

	assert.Equal(t, []ID{l}, f.Refs(x))
	assert.Equal(t, []ID{w}, f.Refs(l))

	assert.Panics(t, func() { f.Erase(l) })

	l2 := f.New(Loc{}, &Load{Src: x})
	f.InsertBefore(w, l2)

	f.ReplaceUses(l, l2)
	assert.Empty(t, f.Refs(l))
	assert.Equal(t, []ID{w}, f.Refs(l2))

	f.Erase(l)
	assert.Equal(t, []ID{l2}, f.Refs(x))
	assert.Equal(t, []ID{l2, w, 3}, f.Blocks[f.Entry].Code)

	require.NoError(t, Verify(f))
}

func TestReplaceUseBothSlots(t *testing.T) {
	f := NewFunc("f", Loc{})
	f.Entry = f.NewBlock()

	c := f.New(Loc{}, &Const{Value: 3})
	f.Append(f.Entry, c)

	a := f.New(Loc{}, &ALU{Op: Add, L: c, R: c})
	f.Append(f.Entry, a)

	assert.Equal(t, []ID{a, a}, f.Refs(c))

	d := f.New(Loc{}, &Const{Value: 4})
	f.InsertBefore(a, d)

	f.ReplaceUse(a, c, d)

	assert.Empty(t, f.Refs(c))
	assert.Equal(t, []ID{a, a}, f.Refs(d))
	assert.Equal(t, &ALU{Op: Add, L: d, R: d}, f.X(a))
}

func TestVerify(t *testing.T) {
	f := NewFunc("f", Loc{})
	f.Entry = f.NewBlock()

	c := f.New(Loc{}, &Const{Value: 1})
	w := f.New(Loc{}, &Write{Src: c})

	f.Append(f.Entry, w)
	f.Append(f.Entry, c)
	f.Append(f.Entry, f.New(Loc{}, &End{}))

	assert.Error(t, Verify(f), "use before def")

	g := NewFunc("g", Loc{})
	g.Entry = g.NewBlock()

	g.Append(g.Entry, g.New(Loc{}, &End{}))
	g.Append(g.Entry, g.New(Loc{}, &Read{}))

	assert.Error(t, Verify(g), "terminator in the middle")
}

func TestWalkOrder(t *testing.T) {
	f := NewFunc("f", Loc{})

	entry := f.NewBlock()
	then := f.NewBlock()
	els := f.NewBlock()
	merge := f.NewBlock()
	f.Entry = entry

	c := f.New(Loc{}, &Const{Value: 1})
	f.Append(entry, c)
	f.Append(entry, f.New(Loc{}, &BranchIf{Kind: Positive, Cond: c, Then: then, Else: els}))
	f.Append(then, f.New(Loc{}, &Branch{Target: merge}))
	f.Append(els, f.New(Loc{}, &Branch{Target: entry}))
	f.Append(merge, f.New(Loc{}, &Ret{}))

	assert.Equal(t, []BlockID{entry, then, merge, els}, f.Reachable())

	require.NoError(t, Verify(f))
}

func TestComplement(t *testing.T) {
	for _, op := range []Op{Eq, Ge, Le} {
		c, ok := op.Complement()
		require.True(t, ok, "%v", op)

		_, ok = c.Complement()
		assert.False(t, ok, "%v", c)
	}

	for _, op := range []Op{Ne, Lt, Gt, Add, Mul} {
		_, ok := op.Complement()
		assert.False(t, ok, "%v", op)
	}
}
