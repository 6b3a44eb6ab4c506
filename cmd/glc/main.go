package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/glang/compiler"
	"github.com/slowlang/glang/compiler/format"
	"github.com/slowlang/glang/compiler/lir"
	"github.com/slowlang/glang/compiler/parse"
	"github.com/slowlang/glang/compiler/vm"
)

func main() {
	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile yaml syntax tree into machine listing",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: append(commonFlags(),
			cli.NewFlag("output,o", "", "output file, stdout if empty"),
			cli.NewFlag("locations", false, "annotate instructions with source locations"),
		),
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "run yaml syntax tree or machine listing",
		Action:      runAct,
		Args:        cli.Args{},
		Flags: append(commonFlags(),
			cli.NewFlag("input,i", "", "space separated input numbers, stdin if empty"),
			cli.NewFlag("steps", 10_000_000, "step limit"),
			cli.NewFlag("trace", false, "print machine state after halt"),
		),
	}

	statsCmd := &cli.Command{
		Name:        "stats",
		Description: "print per function compilation statistics",
		Action:      statsAct,
		Args:        cli.Args{},
		Flags:       commonFlags(),
	}

	app := &cli.Command{
		Name:        "glc",
		Description: "glc compiles programs for the eight register machine",
		Commands: []*cli.Command{
			compileCmd,
			runCmd,
			statsCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func commonFlags() []*cli.Flag {
	return []*cli.Flag{
		cli.NewFlag("no-coalesce", false, "skip spill coalescing"),
		cli.NewFlag("no-verify", false, "skip ir verification between passes"),
		cli.NewFlag("verbosity,v", "", "tlog verbosity topics filter (dump_ir, coalesce, ...)"),
	}
}

func setup(c *cli.Command) (context.Context, compiler.Options) {
	if v := c.String("verbosity"); v != "" {
		tlog.SetVerbosity(v)
	}

	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	opts := compiler.Options{
		NoCoalesce: c.Bool("no-coalesce"),
		NoVerify:   c.Bool("no-verify"),
	}

	return ctx, opts
}

func compileAct(c *cli.Command) (err error) {
	ctx, opts := setup(c)

	var fopts []format.Option
	if c.Bool("locations") {
		fopts = append(fopts, format.WithLocations, format.WithFuncs)
	}

	var b []byte

	for _, a := range c.Args {
		res, err := compiler.CompileFile(ctx, a, opts)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		b, err = format.Format(ctx, b, res.Program, fopts...)
		if err != nil {
			return errors.Wrap(err, "format %v", a)
		}
	}

	if out := c.String("output"); out != "" {
		err = os.WriteFile(out, b, 0o644)
		if err != nil {
			return errors.Wrap(err, "write output")
		}

		return nil
	}

	_, err = os.Stdout.Write(b)

	return err
}

func runAct(c *cli.Command) (err error) {
	ctx, opts := setup(c)

	if len(c.Args) != 1 {
		return errors.New("one program expected")
	}

	name := c.Args[0]

	var code []*lir.Instr

	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		res, err := compiler.CompileFile(ctx, name, opts)
		if err != nil {
			return errors.Wrap(err, "compile %v", name)
		}

		code = res.Program.Code
	default:
		code, err = parse.ListingFile(ctx, name)
		if err != nil {
			return errors.Wrap(err, "parse %v", name)
		}
	}

	in, err := readInput(c.String("input"))
	if err != nil {
		return errors.Wrap(err, "input")
	}

	m := vm.New(code, in...)
	m.MaxSteps = c.Int("steps")

	err = m.Run(ctx)

	for _, v := range m.Output {
		fmt.Printf("> %d\n", v)
	}

	if c.Bool("trace") {
		printMachine(m)
	}

	if err != nil {
		return errors.Wrap(err, "run")
	}

	tlog.Printw("halted", "steps", m.Steps, "cost", m.Cost)

	return nil
}

func statsAct(c *cli.Command) (err error) {
	ctx, opts := setup(c)

	for _, a := range c.Args {
		res, err := compiler.CompileFile(ctx, a, opts)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		t := table.NewWriter()
		t.SetTitle(a)
		t.AppendHeader(table.Row{"Func", "Built", "Spilled", "Coalesced", "Spills", "Rewrites", "Canon", "Frame", "Code"})

		var total funcTotal

		for _, st := range res.Stats {
			t.AppendRow(table.Row{st.Name, st.Built, st.Spilled, st.Coalesced, st.Spills, st.Rewrites, st.Canonicalized, st.Frame, st.Code})

			total.add(st)
		}

		t.AppendFooter(table.Row{"total", total.Built, total.Spilled, total.Coalesced, total.Spills, total.Rewrites, total.Canonicalized, total.Frame, total.Code})

		fmt.Println(t.Render())
	}

	return nil
}

type funcTotal struct {
	compiler.FuncStats
}

func (t *funcTotal) add(st compiler.FuncStats) {
	t.Built += st.Built
	t.Spilled += st.Spilled
	t.Coalesced += st.Coalesced
	t.Spills += st.Spills
	t.Rewrites += st.Rewrites
	t.Canonicalized += st.Canonicalized
	t.Frame += st.Frame
	t.Code += st.Code
}

func readInput(s string) (in []uint64, err error) {
	if s == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, errors.Wrap(err, "read stdin")
		}

		s = string(data)
	}

	for _, f := range strings.Fields(s) {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "parse %q", f)
		}

		in = append(in, v)
	}

	return in, nil
}

func printMachine(m *vm.Machine) {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("pc %d  steps %d  cost %d", m.PC, m.Steps, m.Cost))

	header := table.Row{}
	row := table.Row{}

	for r := lir.A; r < lir.NumRegs; r++ {
		header = append(header, r.String())
		row = append(row, m.Regs[r])
	}

	t.AppendHeader(header)
	t.AppendRow(row)

	fmt.Println(t.Render())
}
