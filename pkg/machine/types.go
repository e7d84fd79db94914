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
	"errors"
	"fmt"
)

type Status uint8
type Mode uint8
type Opcode int64

type OpcodeInfo struct {
	Name   string
	Reads  int
	Writes int
}

// Size is the instruction length in words, opcode included.
func (info OpcodeInfo) Size() int64 {
	return int64(info.Reads+info.Writes) + 1
}

// LookupOpcode reports the operand layout of op.
func LookupOpcode(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodes[op]
	return info, ok
}

// SplitWord separates an instruction word into its opcode and the mode
// digits that follow it, lowest operand position first.
func SplitWord(word int64) (Opcode, int64) {
	return Opcode(word % 100), word / 100
}

func (status Status) String() string {
	switch status {
	case STATUS_READY:
		return "ready"
	case STATUS_WAIT:
		return "wait"
	case STATUS_DONE:
		return "done"
	}

	return fmt.Sprintf("status(%d)", uint8(status))
}

func (op Opcode) String() string {
	if info, ok := opcodes[op]; ok {
		return info.Name
	}

	return fmt.Sprintf("op(%d)", int64(op))
}

type MachineState struct {
	Memory []int64

	// Program counter
	Program int64

	// Relative base
	Relative int64

	Status Status

	// Instructions executed since the last Reset
	Steps uint64
}

// MachineDebugger observes execution. Read and Write report data accesses
// as they happen; Step follows each completed instruction and Fault follows
// an instruction that failed part way through.
type MachineDebugger interface {
	Step(mc *Machine)
	Read(addr int64, mc *Machine)
	Write(addr int64, mc *Machine)
	Fault(err error, mc *Machine)
}

type Machine struct {
	State    MachineState
	Debugger MachineDebugger

	input  queue
	output queue
}

// ErrNoInput is returned by Run when the machine is blocked on an input
// instruction and nothing has been inserted since.
var ErrNoInput = errors.New("machine is waiting for input")

type InvalidOpcodeError struct {
	Addr int64
	Word int64
}

func (err *InvalidOpcodeError) Error() string {
	return fmt.Sprintf("[%d]: Invalid opcode %d (word %d)", err.Addr, err.Word%100, err.Word)
}

type InvalidModeError struct {
	Addr     int64
	Word     int64
	Position int
	Mode     Mode
}

func (err *InvalidModeError) Error() string {
	if err.Mode == MODE_IMMEDIATE {
		return fmt.Sprintf(
			"[%d]: Immediate mode on write operand %d (word %d)",
			err.Addr, err.Position, err.Word,
		)
	}

	return fmt.Sprintf(
		"[%d]: Invalid addressing mode %d for operand %d (word %d)",
		err.Addr, err.Mode, err.Position, err.Word,
	)
}

type InvalidAddressError struct {
	Program int64
	Addr    int64
}

func (err *InvalidAddressError) Error() string {
	return fmt.Sprintf("[%d]: Address %d out of range", err.Program, err.Addr)
}
