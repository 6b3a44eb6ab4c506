package vm

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/glang/compiler/lir"
)

type (
	// Machine interprets resolved programs of the eight register machine.
	// Values are naturals, subtraction saturates at zero.
	Machine struct {
		Code []*lir.Instr

		Regs [lir.NumRegs]uint64
		Mem  map[uint64]uint64
		PC   int

		Input  []uint64
		Output []uint64

		Steps int
		Cost  int

		// MaxSteps limits execution if positive.
		MaxSteps int

		halted bool
	}
)

var (
	ErrNoInput   = errors.New("no input left")
	ErrStepLimit = errors.New("step limit reached")
)

func New(code []*lir.Instr, input ...uint64) *Machine {
	return &Machine{
		Code:  code,
		Mem:   make(map[uint64]uint64),
		Input: input,
	}
}

// Run executes until halt.
func Run(ctx context.Context, code []*lir.Instr, input ...uint64) (out []uint64, err error) {
	m := New(code, input...)

	err = m.Run(ctx)

	return m.Output, err
}

func (m *Machine) Run(ctx context.Context) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "vm: run", "instrs", len(m.Code), "input", m.Input)
	defer tr.Finish("steps", &m.Steps, "cost", &m.Cost, "err", &err)

	for !m.halted {
		if m.MaxSteps > 0 && m.Steps >= m.MaxSteps {
			return errors.Wrap(ErrStepLimit, "pc %d", m.PC)
		}

		err = m.Step()
		if err != nil {
			return errors.Wrap(err, "pc %d", m.PC)
		}
	}

	return nil
}

func (m *Machine) Halted() bool { return m.halted }

// Step executes one instruction.
func (m *Machine) Step() error {
	if m.halted {
		return nil
	}

	if m.PC < 0 || m.PC >= len(m.Code) {
		return errors.New("jump out of program")
	}

	x := m.Code[m.PC]
	a := &m.Regs[lir.A]

	var r *uint64
	if x.Op.HasReg() {
		if x.Reg < 0 || x.Reg >= lir.NumRegs {
			return errors.New("bad register: %v", x.Reg)
		}

		r = &m.Regs[x.Reg]
	}

	m.Steps++
	m.Cost += x.Op.Cost()
	m.PC++

	switch x.Op {
	case lir.Read:
		if len(m.Input) == 0 {
			return ErrNoInput
		}

		*a = m.Input[0]
		m.Input = m.Input[1:]
	case lir.Write:
		m.Output = append(m.Output, *a)
	case lir.Load:
		*a = m.Mem[*r]
	case lir.Store:
		m.Mem[*r] = *a
	case lir.Add:
		*a += *r
	case lir.Sub:
		*a = sub(*a, *r)
	case lir.Get:
		*a = *r
	case lir.Put:
		*r = *a
	case lir.Rst:
		*r = 0
	case lir.Inc:
		*r++
	case lir.Dec:
		*r = sub(*r, 1)
	case lir.Shl:
		*r <<= 1
	case lir.Shr:
		*r >>= 1
	case lir.Jump:
		m.PC = x.Addr
	case lir.Jpos:
		if *a > 0 {
			m.PC = x.Addr
		}
	case lir.Jzero:
		if *a == 0 {
			m.PC = x.Addr
		}
	case lir.Strk:
		*r = uint64(m.PC - 1)
	case lir.Jumpr:
		m.PC = int(*r)
	case lir.Halt:
		m.halted = true
	default:
		return errors.New("bad instruction: %v", x.Op)
	}

	return nil
}

func sub(x, y uint64) uint64 {
	if x < y {
		return 0
	}

	return x - y
}
