package ast

import (
	"context"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Serialized tree. Declarations are referred to by name,
// Decode links them to pointers.
//
//	procedures:
//	  - name: inc
//	    params: [{name: x}]
//	    body:
//	      - assign: x
//	        value: {op: "+", l: x, r: 1}
//	main:
//	  locals: [{name: a}, {name: t, size: 10}]
//	  body:
//	    - read: a
//	    - call: inc
//	      args: [a]
//	    - write: a
//	    - write: {index: t, at: a}

type (
	rawFile struct {
		Procedures []*rawProc `yaml:"procedures"`
		Main       *rawProc   `yaml:"main"`
	}

	rawProc struct {
		Name   string      `yaml:"name"`
		Params []rawParam  `yaml:"params"`
		Locals []rawVar    `yaml:"locals"`
		Body   []yaml.Node `yaml:"body"`

		Base `yaml:"-"`
	}

	rawParam struct {
		Name  string `yaml:"name"`
		Value bool   `yaml:"value"`
		Array bool   `yaml:"array"`
	}

	rawVar struct {
		Name string `yaml:"name"`
		Size int    `yaml:"size"`
	}

	decoder struct {
		procs map[string]*Proc
		scope map[string]Decl
	}
)

func DecodeFile(ctx context.Context, name string) (*File, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(data), "name", name)

	return Decode(ctx, data)
}

// Decode reads a tree serialized as yaml.
func Decode(ctx context.Context, data []byte) (_ *File, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "ast: decode")
	defer tr.Finish("err", &err)

	var raw rawFile

	err = yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal")
	}

	if raw.Main == nil {
		return nil, errors.New("no main program")
	}

	d := &decoder{
		procs: make(map[string]*Proc),
	}

	f := &File{}

	for _, rp := range raw.Procedures {
		p, err := d.proc(rp, false)
		if err != nil {
			return nil, errors.Wrap(err, "procedure %v", rp.Name)
		}

		f.Decls = append(f.Decls, p)
	}

	p, err := d.proc(raw.Main, true)
	if err != nil {
		return nil, errors.Wrap(err, "main")
	}

	f.Decls = append(f.Decls, p)

	tr.Printw("decoded", "procs", len(f.Decls))

	return f, nil
}

func (p *rawProc) UnmarshalYAML(n *yaml.Node) error {
	type plain rawProc

	p.Base = pos(n)

	return n.Decode((*plain)(p))
}

func (d *decoder) proc(rp *rawProc, main bool) (_ *Proc, err error) {
	p := &Proc{
		Base:   rp.Base,
		Name:   rp.Name,
		IsMain: main,
	}

	if main && p.Name == "" {
		p.Name = "main"
	}

	if !main {
		if p.Name == "" {
			return nil, errors.New("%v: unnamed procedure", p.Base)
		}

		if _, ok := d.procs[p.Name]; ok {
			return nil, errors.New("%v: procedure redeclared", p.Base)
		}
	}

	if main && len(rp.Params) != 0 {
		return nil, errors.New("%v: main program takes no parameters", p.Base)
	}

	d.scope = make(map[string]Decl)

	for _, rp := range rp.Params {
		mode := ByRef
		if rp.Value {
			mode = ByValue
		}

		if rp.Array && mode == ByValue {
			return nil, errors.New("%v: array parameter %v passed by value", p.Base, rp.Name)
		}

		x := &Param{Base: p.Base, Name: rp.Name, Mode: mode, Array: rp.Array}

		if err = d.declare(rp.Name, x); err != nil {
			return nil, err
		}

		p.Params = append(p.Params, x)
	}

	for _, rv := range rp.Locals {
		if rv.Size < 0 {
			return nil, errors.New("%v: negative size of %v", p.Base, rv.Name)
		}

		x := &Var{Base: p.Base, Name: rv.Name, Size: rv.Size}

		if err = d.declare(rv.Name, x); err != nil {
			return nil, err
		}

		p.Locals = append(p.Locals, x)
	}

	p.Body, err = d.stmts(rp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	if !main {
		d.procs[p.Name] = p
	}

	return p, nil
}

func (d *decoder) declare(name string, x Decl) error {
	if name == "" {
		return errors.New("unnamed variable")
	}

	if _, ok := d.scope[name]; ok {
		return errors.New("%v redeclared", name)
	}

	d.scope[name] = x

	return nil
}

func (d *decoder) stmts(l []yaml.Node) (res []Stmt, err error) {
	for i := range l {
		s, err := d.stmt(&l[i])
		if err != nil {
			return nil, err
		}

		res = append(res, s)
	}

	return res, nil
}

func (d *decoder) stmtList(n *yaml.Node) ([]Stmt, error) {
	if n == nil {
		return nil, nil
	}

	if n.Kind != yaml.SequenceNode {
		return nil, errors.New("%v: statement list expected", pos(n))
	}

	l := make([]yaml.Node, len(n.Content))

	for i, c := range n.Content {
		l[i] = *c
	}

	return d.stmts(l)
}

func (d *decoder) stmt(n *yaml.Node) (_ Stmt, err error) {
	m, err := mapping(n)
	if err != nil {
		return nil, err
	}

	b := pos(n)

	switch {
	case m["assign"] != nil:
		dst, err := d.lvalue(m["assign"])
		if err != nil {
			return nil, err
		}

		src, err := d.expr(m["value"])
		if err != nil {
			return nil, errors.Wrap(err, "value")
		}

		return &Assign{Base: b, Dst: dst, Src: src}, nil
	case m["if"] != nil:
		x := &If{Base: b}

		x.Cond, err = d.cond(m["if"])
		if err != nil {
			return nil, errors.Wrap(err, "condition")
		}

		x.Then, err = d.stmtList(m["then"])
		if err != nil {
			return nil, errors.Wrap(err, "then")
		}

		x.Else, err = d.stmtList(m["else"])
		if err != nil {
			return nil, errors.Wrap(err, "else")
		}

		return x, nil
	case m["while"] != nil:
		x := &While{Base: b}

		x.Cond, err = d.cond(m["while"])
		if err != nil {
			return nil, errors.Wrap(err, "condition")
		}

		x.Body, err = d.stmtList(m["do"])
		if err != nil {
			return nil, errors.Wrap(err, "do")
		}

		return x, nil
	case m["repeat"] != nil:
		x := &Repeat{Base: b}

		x.Body, err = d.stmtList(m["repeat"])
		if err != nil {
			return nil, errors.Wrap(err, "repeat")
		}

		x.Cond, err = d.cond(m["until"])
		if err != nil {
			return nil, errors.Wrap(err, "until")
		}

		return x, nil
	case m["call"] != nil:
		name := m["call"].Value

		p, ok := d.procs[name]
		if !ok {
			return nil, errors.New("%v: undefined procedure %q", b, name)
		}

		x := &Call{Base: b, Proc: p}

		if a := m["args"]; a != nil {
			if a.Kind != yaml.SequenceNode {
				return nil, errors.New("%v: argument list expected", pos(a))
			}

			for _, a := range a.Content {
				arg, err := d.expr(a)
				if err != nil {
					return nil, errors.Wrap(err, "argument")
				}

				if _, ok := arg.(*Ident); !ok {
					return nil, errors.New("%v: argument must be a variable", pos(a))
				}

				x.Args = append(x.Args, arg)
			}
		}

		if len(x.Args) != len(p.Params) {
			return nil, errors.New("%v: %v takes %d arguments, got %d", b, name, len(p.Params), len(x.Args))
		}

		return x, nil
	case m["read"] != nil:
		dst, err := d.lvalue(m["read"])
		if err != nil {
			return nil, err
		}

		return &Read{Base: b, Dst: dst}, nil
	case m["write"] != nil:
		src, err := d.expr(m["write"])
		if err != nil {
			return nil, err
		}

		return &Write{Base: b, Src: src}, nil
	default:
		return nil, errors.New("%v: unknown statement", b)
	}
}

func (d *decoder) lvalue(n *yaml.Node) (Expr, error) {
	x, err := d.expr(n)
	if err != nil {
		return nil, err
	}

	switch x.(type) {
	case *Ident, *Index:
		return x, nil
	default:
		return nil, errors.New("%v: not assignable", pos(n))
	}
}

// cond decodes a condition. Comparisons are allowed only at its top.
func (d *decoder) cond(n *yaml.Node) (Expr, error) {
	return d.value(n, true)
}

func (d *decoder) expr(n *yaml.Node) (Expr, error) {
	return d.value(n, false)
}

func (d *decoder) value(n *yaml.Node, cond bool) (_ Expr, err error) {
	if n == nil {
		return nil, errors.New("expression expected")
	}

	b := pos(n)

	switch n.Kind {
	case yaml.ScalarNode:
		if v, err := strconv.ParseUint(n.Value, 10, 64); err == nil {
			return &Num{Base: b, Value: v}, nil
		}

		def, ok := d.scope[n.Value]
		if !ok {
			return nil, errors.New("%v: undefined variable %q", b, n.Value)
		}

		return &Ident{Base: b, Def: def}, nil
	case yaml.MappingNode:
	default:
		return nil, errors.New("%v: expression expected", b)
	}

	m, err := mapping(n)
	if err != nil {
		return nil, err
	}

	if arr := m["index"]; arr != nil {
		def, ok := d.scope[arr.Value]
		if !ok {
			return nil, errors.New("%v: undefined array %q", b, arr.Value)
		}

		idx, err := d.expr(m["at"])
		if err != nil {
			return nil, errors.Wrap(err, "index")
		}

		return &Index{Base: b, Def: def, Index: idx}, nil
	}

	if m["op"] == nil {
		return nil, errors.New("%v: expression expected", b)
	}

	op, ok := ParseOp(m["op"].Value)
	if !ok {
		return nil, errors.New("%v: unknown operator %q", b, m["op"].Value)
	}

	if op.Relational() && !cond {
		return nil, errors.New("%v: comparison %q outside of a condition", b, m["op"].Value)
	}

	x := &Binary{Base: b, Op: op}

	x.L, err = d.expr(m["l"])
	if err != nil {
		return nil, errors.Wrap(err, "lhs")
	}

	x.R, err = d.expr(m["r"])
	if err != nil {
		return nil, errors.Wrap(err, "rhs")
	}

	return x, nil
}

func mapping(n *yaml.Node) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errors.New("%v: mapping expected", pos(n))
	}

	m := make(map[string]*yaml.Node, len(n.Content)/2)

	for i := 0; i+1 < len(n.Content); i += 2 {
		m[n.Content[i].Value] = n.Content[i+1]
	}

	return m, nil
}

func pos(n *yaml.Node) Base {
	return Base{Line: n.Line, Col: n.Column}
}

func (b Base) String() string {
	return strconv.Itoa(b.Line) + ":" + strconv.Itoa(b.Col)
}
