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
	"strings"
	"unicode"
)

// InsertASCII queues each byte of s as one input value.
func (mc *Machine) InsertASCII(s string) *Machine {
	for i := 0; i < len(s); i++ {
		mc.input.push(int64(s[i]))
	}

	return mc
}

// PopASCII drains leading outputs in the ASCII range as text. The boolean
// reports whether a non-ASCII value was left at the head of the queue.
func (mc *Machine) PopASCII() (string, bool) {
	var builder strings.Builder

	for {
		value, ok := mc.output.peek()

		if !ok {
			return builder.String(), false
		}

		if value < 0 || value > unicode.MaxASCII {
			return builder.String(), true
		}

		mc.output.pop()
		builder.WriteByte(byte(value))
	}
}
