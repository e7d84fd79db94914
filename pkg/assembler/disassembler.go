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
	"fmt"
	"strings"

	"github.com/lassandro/gointcode/pkg/machine"
)

// Line is one disassembled statement.
type Line struct {
	Addr  int64
	Label string
	Words []int64
	Text  string
}

func (line Line) Size() int64 {
	return int64(len(line.Words))
}

func (line Line) String() string {
	if line.Label != "" {
		return line.Label + " " + line.Text
	}

	return line.Text
}

func dataLine(memory []int64, addr int64, labels map[int64]string) Line {
	var word int64

	if addr >= 0 && addr < int64(len(memory)) {
		word = memory[addr]
	}

	return Line{
		Addr:  addr,
		Label: labels[addr],
		Words: []int64{word},
		Text:  fmt.Sprintf(".DATA %d", word),
	}
}

func formatOperand(value int64, mode machine.Mode, labels map[int64]string) string {
	switch mode {
	case machine.MODE_IMMEDIATE:
		return fmt.Sprintf("%c%d", PREFIX_IMMEDIATE, value)

	case machine.MODE_RELATIVE:
		return fmt.Sprintf("%c%d", PREFIX_RELATIVE, value)
	}

	if label, ok := labels[value]; ok {
		return label
	}

	return fmt.Sprintf("%d", value)
}

// Disassemble renders the statement at addr. Words that do not decode to a
// valid instruction, or whose operands run past the end of memory, are
// rendered as a single .DATA word. Assembling the text yields the same
// words.
func Disassemble(memory []int64, addr int64, labels map[int64]string) Line {
	if addr < 0 || addr >= int64(len(memory)) {
		return dataLine(memory, addr, labels)
	}

	word := memory[addr]
	op, modes := machine.SplitWord(word)
	info, ok := machine.LookupOpcode(op)

	if !ok || addr+info.Size() > int64(len(memory)) {
		return dataLine(memory, addr, labels)
	}

	operands := make([]string, 0, info.Reads+info.Writes)

	for i := 0; i < info.Reads+info.Writes; i++ {
		mode := machine.Mode(modes % 10)
		modes /= 10

		if mode > machine.MODE_RELATIVE ||
			(i >= info.Reads && mode == machine.MODE_IMMEDIATE) {
			return dataLine(memory, addr, labels)
		}

		operands = append(
			operands, formatOperand(memory[addr+int64(i)+1], mode, labels),
		)
	}

	// Stray mode digits past the last operand do not survive reassembly
	if modes != 0 {
		return dataLine(memory, addr, labels)
	}

	text := info.Name
	if len(operands) > 0 {
		text += " " + strings.Join(operands, ", ")
	}

	return Line{
		Addr:  addr,
		Label: labels[addr],
		Words: memory[addr : addr+info.Size()],
		Text:  text,
	}
}

// DisassembleProgram walks memory from address zero.
func DisassembleProgram(memory []int64, labels map[int64]string) []Line {
	var lines []Line

	for addr := int64(0); addr < int64(len(memory)); {
		line := Disassemble(memory, addr, labels)
		lines = append(lines, line)
		addr += line.Size()
	}

	return lines
}
