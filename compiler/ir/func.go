package ir

import (
	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

func NewFunc(name string, l Loc) *Func {
	return &Func{
		Name:  name,
		Loc:   l,
		Entry: NilBlock,
	}
}

func (f *Func) NewBlock() BlockID {
	f.Blocks = append(f.Blocks, Block{})

	return BlockID(len(f.Blocks) - 1)
}

// New allocates an instruction without placing it into a block.
// Operand referrer sets are updated.
func (f *Func) New(l Loc, x any) ID {
	id := ID(len(f.Instrs))

	f.Instrs = append(f.Instrs, Instr{
		X:     x,
		Loc:   l,
		Block: NilBlock,
	})

	for _, op := range Operands(x) {
		f.addRef(*op, id)
	}

	if c, ok := x.(*Call); ok {
		c.Func.Callers = append(c.Func.Callers, CallSite{Func: f, Call: id})
	}

	return id
}

func (f *Func) NewVar(l Loc, name string, kind VarKind, size int, byRef bool) ID {
	id := f.New(l, &Variable{
		Name:  name,
		Kind:  kind,
		Size:  size,
		ByRef: byRef,
	})

	switch kind {
	case Local:
		f.Locals = append(f.Locals, id)
	case Param:
		f.Params = append(f.Params, id)
	}

	return id
}

// Var returns the variable behind id or nil if id is not a variable.
func (f *Func) Var(id ID) *Variable {
	if id < 0 {
		return nil
	}

	v, _ := f.Instrs[id].X.(*Variable)

	return v
}

func (f *Func) X(id ID) any {
	return f.Instrs[id].X
}

func (f *Func) Refs(id ID) []ID {
	return f.Instrs[id].Refs
}

func (f *Func) Append(b BlockID, id ID) {
	f.place(b, id)

	f.Blocks[b].Code = append(f.Blocks[b].Code, id)
}

func (f *Func) InsertBefore(pos, id ID) {
	b, i := f.Pos(pos)

	f.insert(b, i, id)
}

func (f *Func) InsertAfter(pos, id ID) {
	b, i := f.Pos(pos)

	f.insert(b, i+1, id)
}

// Pos returns the block holding id and its index there.
func (f *Func) Pos(id ID) (BlockID, int) {
	b := f.Instrs[id].Block
	if b == NilBlock {
		panic(id)
	}

	for i, x := range f.Blocks[b].Code {
		if x == id {
			return b, i
		}
	}

	panic(id)
}

// Detach removes id from its block keeping it alive.
func (f *Func) Detach(id ID) {
	b, i := f.Pos(id)

	code := f.Blocks[b].Code
	f.Blocks[b].Code = append(code[:i], code[i+1:]...)

	f.Instrs[id].Block = NilBlock
}

// Erase deletes an instruction which nobody refers to.
func (f *Func) Erase(id ID) {
	in := &f.Instrs[id]

	if len(in.Refs) != 0 {
		panic(id)
	}

	if tlog.If("ir_mutate") {
		tlog.Printw("erase", "func", f.Name, "id", id, "typ", tlog.NextAsType, in.X, "from", loc.Caller(1))
	}

	for _, op := range Operands(in.X) {
		f.removeRef(*op, id)
	}

	if in.Block != NilBlock {
		f.Detach(id)
	}

	in.Dead = true
}

// ReplaceUses redirects every use of old to x.
func (f *Func) ReplaceUses(old, x ID) {
	refs := f.Instrs[old].Refs
	f.Instrs[old].Refs = nil

	for _, u := range refs {
		for _, op := range Operands(f.Instrs[u].X) {
			if *op == old {
				*op = x
				f.addRef(x, u)

				break
			}
		}
	}
}

// ReplaceUse redirects operands of user equal to old to x.
func (f *Func) ReplaceUse(user, old, x ID) {
	for _, op := range Operands(f.Instrs[user].X) {
		if *op != old {
			continue
		}

		*op = x

		f.removeRef(old, user)
		f.addRef(x, user)
	}
}

// Terminator returns the last instruction of b.
func (f *Func) Terminator(b BlockID) ID {
	code := f.Blocks[b].Code
	if len(code) == 0 {
		return Nil
	}

	return code[len(code)-1]
}

// Successors returns then before else.
func (f *Func) Successors(b BlockID) []BlockID {
	t := f.Terminator(b)
	if t == Nil {
		return nil
	}

	switch x := f.Instrs[t].X.(type) {
	case *Branch:
		return []BlockID{x.Target}
	case *BranchIf:
		return []BlockID{x.Then, x.Else}
	default:
		return nil
	}
}

// Size returns the number of live instructions placed in blocks.
func (f *Func) Size() (n int) {
	for _, b := range f.Blocks {
		n += len(b.Code)
	}

	return n
}

func (f *Func) place(b BlockID, id ID) {
	in := &f.Instrs[id]

	if in.Block != NilBlock || in.Dead {
		panic(id)
	}

	if _, ok := in.X.(*Variable); ok {
		panic(id)
	}

	in.Block = b
}

func (f *Func) insert(b BlockID, i int, id ID) {
	f.place(b, id)

	code := f.Blocks[b].Code
	code = append(code, Nil)
	copy(code[i+1:], code[i:])
	code[i] = id

	f.Blocks[b].Code = code
}

func (f *Func) addRef(def, user ID) {
	f.Instrs[def].Refs = append(f.Instrs[def].Refs, user)
}

func (f *Func) removeRef(def, user ID) {
	refs := f.Instrs[def].Refs

	for i, r := range refs {
		if r == user {
			f.Instrs[def].Refs = append(refs[:i], refs[i+1:]...)
			return
		}
	}

	panic(user)
}
