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

const (
	STATUS_READY Status = iota
	STATUS_WAIT
	STATUS_DONE
)

const (
	MODE_POSITION  Mode = 0
	MODE_IMMEDIATE Mode = 1
	MODE_RELATIVE  Mode = 2
)

const (
	OP_ADD  Opcode = 1
	OP_MUL  Opcode = 2
	OP_IN   Opcode = 3
	OP_OUT  Opcode = 4
	OP_JNZ  Opcode = 5
	OP_JZ   Opcode = 6
	OP_LT   Opcode = 7
	OP_EQ   Opcode = 8
	OP_ARB  Opcode = 9
	OP_HALT Opcode = 99
)

const (
	// Cells, not bytes. Addresses at or past the limit fail to resolve.
	MEMORY_LIMIT = 1 << 24

	// Instructions executed between context checks in RunContext.
	CONTEXT_POLL = 1 << 12
)

// Operand layout per opcode. Reads always precede the write operand.
var opcodes = map[Opcode]OpcodeInfo{
	OP_ADD:  {"ADD", 2, 1},
	OP_MUL:  {"MUL", 2, 1},
	OP_IN:   {"IN", 0, 1},
	OP_OUT:  {"OUT", 1, 0},
	OP_JNZ:  {"JNZ", 2, 0},
	OP_JZ:   {"JZ", 2, 0},
	OP_LT:   {"LT", 2, 1},
	OP_EQ:   {"EQ", 2, 1},
	OP_ARB:  {"ARB", 1, 0},
	OP_HALT: {"HALT", 0, 0},
}
