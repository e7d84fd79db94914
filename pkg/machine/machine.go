// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package machine

import (
	"context"

	"github.com/lassandro/gointcode/pkg/encoding"
)

// instruction is decoded fresh for every step. Read operands are resolved to
// their values, the write operand (if any) to its address.
type instruction struct {
	Opcode Opcode
	Size   int64
	Values [2]int64
	Target int64
}

// New builds a machine from comma-separated program text.
func New(text string) (*Machine, error) {
	program, err := encoding.DecodeProgram(text)

	if err != nil {
		return nil, err
	}

	mc := new(Machine)
	mc.Load(program)

	return mc, nil
}

func (mc *MachineState) Reset() {
	mc.Memory = nil
	mc.Program = 0
	mc.Relative = 0
	mc.Status = STATUS_READY
	mc.Steps = 0
}

// Load resets the machine and copies program into memory. Both queues are
// emptied.
func (mc *Machine) Load(program []int64) {
	mc.State.Reset()
	mc.State.Memory = make([]int64, len(program))
	copy(mc.State.Memory, program)

	mc.input.reset()
	mc.output.reset()
}

// Clone returns an independent copy of the machine without its debugger.
func (mc *Machine) Clone() *Machine {
	clone := &Machine{
		State:  mc.State,
		input:  mc.input.clone(),
		output: mc.output.clone(),
	}

	clone.State.Memory = make([]int64, len(mc.State.Memory))
	copy(clone.State.Memory, mc.State.Memory)

	return clone
}

// Insert appends value to the input queue.
func (mc *Machine) Insert(value int64) *Machine {
	mc.input.push(value)
	return mc
}

// Pop removes the oldest buffered output.
func (mc *Machine) Pop() (int64, bool) {
	return mc.output.pop()
}

// Outputs returns the buffered outputs, oldest first, without consuming them.
func (mc *Machine) Outputs() []int64 {
	return mc.output.snapshot()
}

// Pending returns the number of inserted values not yet read.
func (mc *Machine) Pending() int {
	return mc.input.len()
}

// Grow zero-fills memory so that addr is addressable. Negative addresses and
// addresses at or past MEMORY_LIMIT fail.
func (mc *MachineState) Grow(addr int64) error {
	if addr < 0 || addr >= MEMORY_LIMIT {
		return &InvalidAddressError{mc.Program, addr}
	}

	if size := int64(len(mc.Memory)); addr >= size {
		mc.Memory = append(mc.Memory, make([]int64, addr+1-size)...)
	}

	return nil
}

func (mc *Machine) ensure(addr int64) error {
	return mc.State.Grow(addr)
}

// fetch reads memory without notifying the debugger.
func (mc *Machine) fetch(addr int64) (int64, error) {
	if err := mc.ensure(addr); err != nil {
		return 0, err
	}

	return mc.State.Memory[addr], nil
}

func (mc *Machine) load(addr int64) (int64, error) {
	value, err := mc.fetch(addr)

	if err != nil {
		return 0, err
	}

	if mc.Debugger != nil {
		mc.Debugger.Read(addr, mc)
	}

	return value, nil
}

func (mc *Machine) store(addr int64, value int64) error {
	if err := mc.ensure(addr); err != nil {
		return err
	}

	mc.State.Memory[addr] = value

	if mc.Debugger != nil {
		mc.Debugger.Write(addr, mc)
	}

	return nil
}

func (mc *Machine) resolve(word int64, position int, mode Mode) (int64, error) {
	pc := mc.State.Program
	operand := pc + int64(position)

	switch mode {
	case MODE_POSITION:
		return mc.fetch(operand)

	case MODE_IMMEDIATE:
		return operand, mc.ensure(operand)

	case MODE_RELATIVE:
		offset, err := mc.fetch(operand)
		return mc.State.Relative + offset, err
	}

	return 0, &InvalidModeError{pc, word, position, mode}
}

func (mc *Machine) decode() (instruction, error) {
	var inst instruction

	pc := mc.State.Program
	word, err := mc.fetch(pc)

	if err != nil {
		return inst, err
	}

	op, modes := SplitWord(word)
	info, ok := opcodes[op]

	if !ok {
		return inst, &InvalidOpcodeError{pc, word}
	}

	inst.Opcode = op
	inst.Size = info.Size()

	for i := 0; i < info.Reads+info.Writes; i++ {
		mode := Mode(modes % 10)
		modes /= 10

		if i >= info.Reads && mode == MODE_IMMEDIATE {
			return inst, &InvalidModeError{pc, word, i + 1, mode}
		}

		addr, err := mc.resolve(word, i+1, mode)

		if err != nil {
			return inst, err
		}

		if i >= info.Reads {
			if err := mc.ensure(addr); err != nil {
				return inst, err
			}
			inst.Target = addr
		} else if mode == MODE_IMMEDIATE {
			inst.Values[i] = mc.State.Memory[addr]
		} else if inst.Values[i], err = mc.load(addr); err != nil {
			return inst, err
		}
	}

	return inst, nil
}

// fault tells the debugger that the current instruction did not complete.
func (mc *Machine) fault(err error) error {
	if mc.Debugger != nil {
		mc.Debugger.Fault(err, mc)
	}

	return err
}

func boolWord(cond bool) int64 {
	if cond {
		return 1
	}

	return 0
}

// Step executes the instruction at the program counter. A halted machine is
// left untouched. An input instruction with nothing to read leaves the
// program counter in place and reports STATUS_WAIT.
func (mc *Machine) Step() (Status, error) {
	if mc.State.Status == STATUS_DONE {
		return STATUS_DONE, nil
	}

	inst, err := mc.decode()

	if err != nil {
		return mc.State.Status, mc.fault(err)
	}

	next := mc.State.Program + inst.Size
	status := STATUS_READY

	switch inst.Opcode {
	case OP_ADD:
		err = mc.store(inst.Target, inst.Values[0]+inst.Values[1])

	case OP_MUL:
		err = mc.store(inst.Target, inst.Values[0]*inst.Values[1])

	case OP_IN:
		value, ok := mc.input.pop()

		if !ok {
			mc.State.Status = STATUS_WAIT
			return STATUS_WAIT, nil
		}

		err = mc.store(inst.Target, value)

	case OP_OUT:
		mc.output.push(inst.Values[0])

	case OP_JNZ:
		if inst.Values[0] != 0 {
			next = inst.Values[1]
		}

	case OP_JZ:
		if inst.Values[0] == 0 {
			next = inst.Values[1]
		}

	case OP_LT:
		err = mc.store(inst.Target, boolWord(inst.Values[0] < inst.Values[1]))

	case OP_EQ:
		err = mc.store(inst.Target, boolWord(inst.Values[0] == inst.Values[1]))

	case OP_ARB:
		mc.State.Relative += inst.Values[0]

	case OP_HALT:
		next = mc.State.Program
		status = STATUS_DONE
	}

	if err != nil {
		return mc.State.Status, mc.fault(err)
	}

	mc.State.Program = next
	mc.State.Status = status
	mc.State.Steps++

	if mc.Debugger != nil {
		mc.Debugger.Step(mc)
	}

	return mc.State.Status, nil
}

// Run steps until the machine halts or blocks on input.
func (mc *Machine) Run() (Status, error) {
	return mc.RunContext(context.Background())
}

// RunContext is Run with cancellation, checked every CONTEXT_POLL
// instructions. Resuming a waiting machine requires pending input.
func (mc *Machine) RunContext(ctx context.Context) (Status, error) {
	switch mc.State.Status {
	case STATUS_DONE:
		return STATUS_DONE, nil

	case STATUS_WAIT:
		if mc.input.len() == 0 {
			return STATUS_WAIT, ErrNoInput
		}

		mc.State.Status = STATUS_READY
	}

	for n := 1; ; n++ {
		if n%CONTEXT_POLL == 0 {
			if err := ctx.Err(); err != nil {
				return mc.State.Status, err
			}
		}

		status, err := mc.Step()

		if err != nil || status != STATUS_READY {
			return status, err
		}
	}
}
