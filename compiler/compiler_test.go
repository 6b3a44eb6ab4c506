package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/glang/compiler/ast"
	"github.com/slowlang/glang/compiler/vm"
)

type runCase struct {
	in  []uint64
	out []uint64
}

const maxProg = `
main:
  locals: [{name: a}, {name: b}]
  body:
    - read: a
    - read: b
    - if: {op: ">", l: a, r: b}
      then:
        - write: a
      else:
        - write: b
`

const mulProg = `
main:
  locals: [{name: x}, {name: y}, {name: z}]
  body:
    - read: x
    - read: y
    - assign: z
      value: {op: "*", l: x, r: y}
    - write: z
`

const divProg = `
main:
  locals: [{name: x}, {name: y}]
  body:
    - read: x
    - read: y
    - write: {op: "/", l: x, r: y}
    - write: {op: "%", l: x, r: y}
    - write: {op: "-", l: y, r: x}
`

const cmpProg = `
main:
  locals: [{name: a}, {name: b}]
  body:
    - read: a
    - read: b
    - if: {op: "=", l: a, r: b}
      then: [{write: 1}]
      else: [{write: 0}]
    - if: {op: "!=", l: a, r: b}
      then: [{write: 1}]
      else: [{write: 0}]
    - if: {op: "<", l: a, r: b}
      then: [{write: 1}]
      else: [{write: 0}]
    - if: {op: ">", l: a, r: b}
      then: [{write: 1}]
      else: [{write: 0}]
    - if: {op: "<=", l: a, r: b}
      then: [{write: 1}]
      else: [{write: 0}]
    - if: {op: ">=", l: a, r: b}
      then: [{write: 1}]
      else: [{write: 0}]
`

const procProg = `
procedures:
  - name: inc
    params: [{name: x}]
    body:
      - assign: x
        value: {op: "+", l: x, r: 1}
  - name: twice
    params: [{name: y}]
    body:
      - call: inc
        args: [y]
      - call: inc
        args: [y]
  - name: show
    params: [{name: v, value: true}]
    body:
      - assign: v
        value: 100
      - write: v
  - name: get
    params: [{name: r}]
    body:
      - read: r
main:
  locals: [{name: a}, {name: b}]
  body:
    - read: a
    - call: inc
      args: [a]
    - write: a
    - call: twice
      args: [a]
    - write: a
    - call: show
      args: [a]
    - write: a
    - call: get
      args: [b]
    - write: {op: "*", l: b, r: 2}
`

const arrayProg = `
procedures:
  - name: sum
    params: [{name: t, array: true}, {name: n, value: true}, {name: s}]
    locals: [{name: i}]
    body:
      - assign: s
        value: 0
      - assign: i
        value: 0
      - while: {op: "<", l: i, r: n}
        do:
          - assign: s
            value: {op: "+", l: s, r: {index: t, at: i}}
          - assign: i
            value: {op: "+", l: i, r: 1}
main:
  locals: [{name: t, size: 5}, {name: i}, {name: n}, {name: s}]
  body:
    - assign: i
      value: 0
    - while: {op: "<", l: i, r: 5}
      do:
        - assign: {index: t, at: i}
          value: {op: "*", l: i, r: i}
        - assign: i
          value: {op: "+", l: i, r: 1}
    - assign: i
      value: 0
    - repeat:
        - write: {index: t, at: i}
        - assign: i
          value: {op: "+", l: i, r: 1}
      until: {op: ">=", l: i, r: 5}
    - assign: n
      value: 5
    - call: sum
      args: [t, n, s]
    - write: s
`

const constProg = `
main:
  body:
    - write: 0
    - write: 1
    - write: 1000000007
    - write: 18446744073709551615
`

func TestPrograms(t *testing.T) {
	for _, tc := range []struct {
		name  string
		src   string
		cases []runCase
	}{
		{"max", maxProg, []runCase{
			{in: []uint64{3, 7}, out: []uint64{7}},
			{in: []uint64{9, 2}, out: []uint64{9}},
			{in: []uint64{4, 4}, out: []uint64{4}},
		}},
		{"mul", mulProg, []runCase{
			{in: []uint64{6, 7}, out: []uint64{42}},
			{in: []uint64{0, 5}, out: []uint64{0}},
			{in: []uint64{5, 0}, out: []uint64{0}},
			{in: []uint64{1 << 20, 1 << 20}, out: []uint64{1 << 40}},
		}},
		{"div", divProg, []runCase{
			{in: []uint64{17, 5}, out: []uint64{3, 2, 0}},
			{in: []uint64{5, 0}, out: []uint64{0, 0, 0}},
			{in: []uint64{0, 5}, out: []uint64{0, 0, 5}},
			{in: []uint64{100, 100}, out: []uint64{1, 0, 0}},
		}},
		{"cmp", cmpProg, []runCase{
			{in: []uint64{3, 5}, out: []uint64{0, 1, 1, 0, 1, 0}},
			{in: []uint64{5, 5}, out: []uint64{1, 0, 0, 0, 1, 1}},
			{in: []uint64{7, 2}, out: []uint64{0, 1, 0, 1, 0, 1}},
		}},
		{"proc", procProg, []runCase{
			{in: []uint64{41, 8}, out: []uint64{42, 44, 100, 44, 16}},
		}},
		{"array", arrayProg, []runCase{
			{out: []uint64{0, 1, 4, 9, 16, 30}},
		}},
		{"const", constProg, []runCase{
			{out: []uint64{0, 1, 1000000007, 18446744073709551615}},
		}},
	} {
		tc := tc

		for _, opts := range []Options{{}, {NoCoalesce: true}} {
			name := tc.name
			if opts.NoCoalesce {
				name += "_no_coalesce"
			}

			t.Run(name, func(t *testing.T) {
				ctx := context.Background()

				file, err := ast.Decode(ctx, []byte(tc.src))
				require.NoError(t, err)

				res, err := Compile(ctx, file, opts)
				require.NoError(t, err)

				for _, c := range tc.cases {
					m := vm.New(res.Program.Code, c.in...)
					m.MaxSteps = 10_000_000

					err = m.Run(ctx)
					require.NoError(t, err, "input %v", c.in)

					assert.Equal(t, c.out, m.Output, "input %v", c.in)
				}
			})
		}
	}
}

func TestCoalesceShrinks(t *testing.T) {
	ctx := context.Background()

	for _, src := range []string{maxProg, mulProg, procProg, arrayProg} {
		file, err := ast.Decode(ctx, []byte(src))
		require.NoError(t, err)

		res, err := Compile(ctx, file, Options{})
		require.NoError(t, err)

		for _, st := range res.Stats {
			assert.LessOrEqual(t, st.Coalesced, st.Spilled, "func %v", st.Name)

			if st.Spills > 0 {
				assert.Greater(t, st.Spilled, st.Built, "func %v", st.Name)
			} else {
				assert.Equal(t, st.Built, st.Spilled, "func %v", st.Name)
			}
		}

		file, err = ast.Decode(ctx, []byte(src))
		require.NoError(t, err)

		plain, err := Compile(ctx, file, Options{NoCoalesce: true})
		require.NoError(t, err)

		assert.Less(t, len(res.Program.Code), len(plain.Program.Code))
	}
}

func TestComparisonAsValue(t *testing.T) {
	ctx := context.Background()

	for _, src := range []string{`
main:
  locals: [{name: a}, {name: b}]
  body:
    - write: {op: "<", l: a, r: b}
`, `
main:
  locals: [{name: a}, {name: b}]
  body:
    - assign: b
      value: {op: "=", l: a, r: 1}
`} {
		assert.NotPanics(t, func() {
			_, err := CompileFile(ctx, writeTemp(t, src), Options{})
			assert.Error(t, err)
		})
	}
}

func writeTemp(t *testing.T, src string) string {
	t.Helper()

	name := filepath.Join(t.TempDir(), "prog.yaml")

	err := os.WriteFile(name, []byte(src), 0o644)
	require.NoError(t, err)

	return name
}

func TestCostAccounting(t *testing.T) {
	ctx := context.Background()

	file, err := ast.Decode(ctx, []byte(mulProg))
	require.NoError(t, err)

	res, err := Compile(ctx, file, Options{})
	require.NoError(t, err)

	m := vm.New(res.Program.Code, 3, 4)

	err = m.Run(ctx)
	require.NoError(t, err)

	cost := 0
	for _, x := range res.Program.Code {
		if x.Op.Cost() >= 100 {
			cost += x.Op.Cost()
		}
	}

	// two reads and one write, all executed exactly once
	assert.Equal(t, 300, cost)
	assert.Greater(t, m.Cost, cost)
}

func TestStats(t *testing.T) {
	ctx := context.Background()

	file, err := ast.Decode(ctx, []byte(procProg))
	require.NoError(t, err)

	res, err := Compile(ctx, file, Options{})
	require.NoError(t, err)

	require.Len(t, res.Stats, 5)

	code := 0
	for _, st := range res.Stats {
		code += st.Code
		assert.Positive(t, st.Frame, "func %v", st.Name)
	}

	assert.Equal(t, len(res.Program.Code), code)
	assert.Equal(t, "main", res.Program.Funcs[0].Name)
	assert.Equal(t, 0, res.Program.Funcs[0].Start)
}
