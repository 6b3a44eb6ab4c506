package ir

import (
	"tlog.app/go/errors"
)

// Verify checks structural consistency of f.
func Verify(f *Func) (err error) {
	if f.Entry == NilBlock {
		return errors.New("no entry block")
	}

	pos := make(map[ID]int)

	for _, b := range f.Reachable() {
		code := f.Blocks[b].Code
		if len(code) == 0 {
			return errors.New("block %d: empty", b)
		}

		for i, id := range code {
			in := &f.Instrs[id]

			if in.Dead {
				return errors.New("block %d: erased instruction %d", b, id)
			}
			if in.Block != b {
				return errors.New("block %d: instruction %d belongs to %d", b, id, in.Block)
			}
			if _, ok := in.X.(*Variable); ok {
				return errors.New("block %d: variable %d placed into block", b, id)
			}
			if last := i+1 == len(code); Terminal(in.X) != last {
				return errors.New("block %d: instruction %d (%T): terminator must end the block", b, id, in.X)
			}

			pos[id] = i
		}

		for _, s := range f.Successors(b) {
			if s < 0 || int(s) >= len(f.Blocks) {
				return errors.New("block %d: bad successor %d", b, s)
			}
		}
	}

	for id := range f.Instrs {
		in := &f.Instrs[id]
		if in.Dead {
			if len(in.Refs) != 0 {
				return errors.New("erased instruction %d has users %v", id, in.Refs)
			}

			continue
		}

		for _, op := range Operands(in.X) {
			def := *op

			if def < 0 || int(def) >= len(f.Instrs) || f.Instrs[def].Dead {
				return errors.New("instruction %d (%T): bad operand %d", id, in.X, def)
			}

			if count(f.Instrs[def].Refs, ID(id)) != countOps(in.X, def) {
				return errors.New("instruction %d (%T): operand %d doesn't know its user", id, in.X, def)
			}

			if err = f.checkOrder(ID(id), def, pos); err != nil {
				return err
			}
		}

		for _, u := range in.Refs {
			if f.Instrs[u].Dead || countOps(f.Instrs[u].X, ID(id)) == 0 {
				return errors.New("instruction %d (%T): stale user %d", id, in.X, u)
			}
		}
	}

	return nil
}

func (f *Func) checkOrder(user, def ID, pos map[ID]int) error {
	u, d := &f.Instrs[user], &f.Instrs[def]

	if _, ok := d.X.(*Variable); ok {
		return nil
	}

	if _, ok := pos[user]; !ok {
		return nil
	}

	if d.Block != u.Block || pos[def] >= pos[user] {
		return errors.New("instruction %d (%T): operand %d doesn't precede it in the block", user, u.X, def)
	}

	return nil
}

func count(l []ID, x ID) (n int) {
	for _, y := range l {
		if y == x {
			n++
		}
	}

	return n
}

func countOps(x any, def ID) (n int) {
	for _, op := range Operands(x) {
		if *op == def {
			n++
		}
	}

	return n
}
