package ir

import "github.com/slowlang/glang/compiler/set"

// Walk visits blocks reachable from the entry depth-first,
// then branch before else branch, each block once.
func (f *Func) Walk(visit func(b BlockID)) {
	var visited set.Bits[BlockID]

	f.walk(f.Entry, &visited, visit)
}

// Reachable returns blocks in Walk order.
func (f *Func) Reachable() (l []BlockID) {
	f.Walk(func(b BlockID) {
		l = append(l, b)
	})

	return l
}

func (f *Func) walk(b BlockID, visited *set.Bits[BlockID], visit func(b BlockID)) {
	if !visited.Add(b) {
		return
	}

	visit(b)

	for _, s := range f.Successors(b) {
		f.walk(s, visited, visit)
	}
}
