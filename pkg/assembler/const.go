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

package assembler

import (
	"github.com/lassandro/gointcode/pkg/machine"
)

const (
	TOKEN_NONE TokenType = iota
	TOKEN_IDENT
	TOKEN_DIRECTIVE
	TOKEN_STRING
	TOKEN_LITERAL
)

const (
	DIRECTIVE_INVALID DirectiveType = iota
	DIRECTIVE_DATA
	DIRECTIVE_BLKW
	DIRECTIVE_ASCII
)

// Operand prefixes selecting a non-default addressing mode
const (
	PREFIX_IMMEDIATE = '#'
	PREFIX_RELATIVE  = '@'
)

var instructions = map[string]machine.Opcode{
	"ADD":  machine.OP_ADD,
	"MUL":  machine.OP_MUL,
	"IN":   machine.OP_IN,
	"OUT":  machine.OP_OUT,
	"JNZ":  machine.OP_JNZ,
	"JZ":   machine.OP_JZ,
	"LT":   machine.OP_LT,
	"EQ":   machine.OP_EQ,
	"ARB":  machine.OP_ARB,
	"HALT": machine.OP_HALT,
}

var directives = map[string]DirectiveType{
	".DATA":  DIRECTIVE_DATA,
	".BLKW":  DIRECTIVE_BLKW,
	".ASCII": DIRECTIVE_ASCII,
}
