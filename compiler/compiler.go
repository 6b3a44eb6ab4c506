package compiler

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/glang/compiler/ast"
	"github.com/slowlang/glang/compiler/back"
	"github.com/slowlang/glang/compiler/format"
	"github.com/slowlang/glang/compiler/front"
	"github.com/slowlang/glang/compiler/ir"
	"github.com/slowlang/glang/compiler/lir"
	"github.com/slowlang/glang/compiler/opt"
)

type (
	Options struct {
		NoCoalesce bool
		NoVerify   bool
	}

	Result struct {
		IR      *ir.Program
		Program *lir.Program
		Stats   []FuncStats
	}

	FuncStats struct {
		Name string

		// IR sizes after each stage.
		Built     int
		Spilled   int
		Coalesced int

		Canonicalized int
		Spills        int
		Rewrites      int

		Frame int
		Code  int
	}
)

func CompileFile(ctx context.Context, name string, opts Options) (*Result, error) {
	file, err := ast.DecodeFile(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	return Compile(ctx, file, opts)
}

// Compile runs the whole pipeline and returns resolved program.
func Compile(ctx context.Context, file *ast.File, opts Options) (res *Result, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "opts", opts)
	defer tr.Finish("err", &err)

	p, err := front.Build(ctx, file)
	if err != nil {
		return nil, errors.Wrap(err, "build")
	}

	res = &Result{IR: p}

	for _, f := range p.Funcs {
		st, err := optimize(ctx, f, opts)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}

		res.Stats = append(res.Stats, st)
	}

	res.Program, err = back.Lower(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "lower")
	}

	back.Resolve(ctx, res.Program)

	if tr.If("dump_lir") {
		b, _ := format.Format(ctx, nil, res.Program, format.WithFuncs)

		tr.Printw("listing", "code", b)
	}

	for _, lf := range res.Program.Funcs {
		for i := range res.Stats {
			st := &res.Stats[i]
			if st.Name != lf.Name {
				continue
			}

			st.Code = lf.Size

			for _, v := range lf.Frame {
				st.Frame += v.Size
			}

			if lf.Ret != nil {
				st.Frame++
			}
		}
	}

	return res, nil
}

func optimize(ctx context.Context, f *ir.Func, opts Options) (st FuncStats, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "optimize", "func", f.Name)
	defer tr.Finish("err", &err)

	st.Name = f.Name
	st.Built = f.Size()

	verify := func(stage string) error {
		if opts.NoVerify {
			return nil
		}

		if err := ir.Verify(f); err != nil {
			if tr.If("dump_ir_on_error") {
				tr.Printw("broken ir", "stage", stage, "code", f.Dump(nil))
			}

			return errors.Wrap(err, "verify after %v", stage)
		}

		return nil
	}

	if err = verify("build"); err != nil {
		return
	}

	st.Canonicalized = opt.Canonicalize(ctx, f)

	if err = verify("canonicalize"); err != nil {
		return
	}

	st.Spills = opt.RegsToMem(ctx, f)
	st.Spilled = f.Size()

	if err = verify("regs to mem"); err != nil {
		return
	}

	if !opts.NoVerify {
		if err = opt.CheckSpilled(f); err != nil {
			return st, errors.Wrap(err, "regs to mem")
		}
	}

	if !opts.NoCoalesce {
		st.Rewrites = opt.Coalesce(ctx, f)

		if err = verify("coalesce"); err != nil {
			return
		}
	}

	st.Coalesced = f.Size()

	if tr.If("dump_ir") {
		tr.Printw("optimized", "code", f.Dump(nil))
	}

	return st, nil
}
