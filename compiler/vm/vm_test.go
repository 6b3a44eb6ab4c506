package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/glang/compiler/lir"
)

func code(l ...lir.Instr) []*lir.Instr {
	res := make([]*lir.Instr, len(l))

	for i := range l {
		res[i] = &l[i]
	}

	return res
}

func TestArith(t *testing.T) {
	ctx := context.Background()

	// (x - y) saturated, then x + y
	c := code(
		lir.Instr{Op: lir.Read},
		lir.Instr{Op: lir.Put, Reg: lir.C},
		lir.Instr{Op: lir.Read},
		lir.Instr{Op: lir.Put, Reg: lir.B},
		lir.Instr{Op: lir.Get, Reg: lir.C},
		lir.Instr{Op: lir.Sub, Reg: lir.B},
		lir.Instr{Op: lir.Write},
		lir.Instr{Op: lir.Get, Reg: lir.C},
		lir.Instr{Op: lir.Add, Reg: lir.B},
		lir.Instr{Op: lir.Write},
		lir.Instr{Op: lir.Halt},
	)

	out, err := Run(ctx, c, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 10}, out)

	out, err = Run(ctx, c, 3, 7)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 10}, out)

	m := New(c, 1, 2)
	require.NoError(t, m.Run(ctx))

	assert.Equal(t, 4*100+2*10+4, m.Cost)
	assert.Equal(t, 11, m.Steps)
	assert.True(t, m.Halted())
}

func TestRegisterOps(t *testing.T) {
	m := New(code(
		lir.Instr{Op: lir.Inc, Reg: lir.D},
		lir.Instr{Op: lir.Shl, Reg: lir.D},
		lir.Instr{Op: lir.Shl, Reg: lir.D},
		lir.Instr{Op: lir.Inc, Reg: lir.D},
		lir.Instr{Op: lir.Shr, Reg: lir.D},
		lir.Instr{Op: lir.Dec, Reg: lir.E},
		lir.Instr{Op: lir.Rst, Reg: lir.F},
		lir.Instr{Op: lir.Halt},
	))

	require.NoError(t, m.Run(context.Background()))

	assert.Equal(t, uint64(2), m.Regs[lir.D])
	assert.Equal(t, uint64(0), m.Regs[lir.E])
	assert.Equal(t, uint64(0), m.Regs[lir.F])
}

func TestMemory(t *testing.T) {
	m := New(code(
		lir.Instr{Op: lir.Inc, Reg: lir.A},
		lir.Instr{Op: lir.Inc, Reg: lir.A},
		lir.Instr{Op: lir.Put, Reg: lir.B},
		lir.Instr{Op: lir.Inc, Reg: lir.A},
		lir.Instr{Op: lir.Store, Reg: lir.B},
		lir.Instr{Op: lir.Rst, Reg: lir.A},
		lir.Instr{Op: lir.Get, Reg: lir.B},
		lir.Instr{Op: lir.Load, Reg: lir.A},
		lir.Instr{Op: lir.Write},
		lir.Instr{Op: lir.Halt},
	))

	require.NoError(t, m.Run(context.Background()))

	assert.Equal(t, []uint64{3}, m.Output)
	assert.Equal(t, uint64(3), m.Mem[2])
}

func TestJumps(t *testing.T) {
	// countdown from input, subroutine at 9 writes a and returns to strk+2
	c := code(
		lir.Instr{Op: lir.Read},
		lir.Instr{Op: lir.Jzero, Addr: 8},
		lir.Instr{Op: lir.Put, Reg: lir.C},
		lir.Instr{Op: lir.Strk, Reg: lir.G},
		lir.Instr{Op: lir.Jump, Addr: 9},
		lir.Instr{Op: lir.Dec, Reg: lir.C},
		lir.Instr{Op: lir.Get, Reg: lir.C},
		lir.Instr{Op: lir.Jump, Addr: 1},
		lir.Instr{Op: lir.Halt},
		lir.Instr{Op: lir.Write},
		lir.Instr{Op: lir.Inc, Reg: lir.G},
		lir.Instr{Op: lir.Inc, Reg: lir.G},
		lir.Instr{Op: lir.Jumpr, Reg: lir.G},
	)

	out, err := Run(context.Background(), c, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 2, 1}, out)
}

func TestErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Run(ctx, code(lir.Instr{Op: lir.Read}, lir.Instr{Op: lir.Halt}))
	assert.ErrorIs(t, err, ErrNoInput)

	m := New(code(lir.Instr{Op: lir.Jump, Addr: 0}))
	m.MaxSteps = 100

	err = m.Run(ctx)
	assert.ErrorIs(t, err, ErrStepLimit)
	assert.Equal(t, 100, m.Steps)

	_, err = Run(ctx, code(lir.Instr{Op: lir.Jump, Addr: 5}))
	assert.Error(t, err)

	_, err = Run(ctx, code(lir.Instr{Op: lir.Inc, Reg: lir.NumRegs}))
	assert.Error(t, err)
}
