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

package encoding

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PROGRAM_DELIMITER separates the words of a program listing.
const PROGRAM_DELIMITER = ","

// ParseError reports a program token that is not a signed 64-bit integer.
type ParseError struct {
	Index int
	Token string
	Err   error
}

func (err *ParseError) Error() string {
	return fmt.Sprintf("invalid program word #%d %q: %v", err.Index, err.Token, err.Err)
}

func (err *ParseError) Unwrap() error {
	return err.Err
}

var ErrEmptyProgram = errors.New("empty program")

// DecodeProgram parses comma-separated program text, e.g. "1,0,0,0,99".
// Whitespace is only ignored around the whole text, never between tokens.
func DecodeProgram(text string) ([]int64, error) {
	text = strings.TrimSpace(text)

	if len(text) == 0 {
		return nil, ErrEmptyProgram
	}

	tokens := strings.Split(text, PROGRAM_DELIMITER)
	result := make([]int64, len(tokens))

	for i, token := range tokens {
		value, err := strconv.ParseInt(token, 10, 64)

		if err != nil {
			return nil, &ParseError{i, token, err}
		}

		result[i] = value
	}

	return result, nil
}

func EncodeProgram(program []int64) string {
	var builder strings.Builder

	for i, value := range program {
		if i > 0 {
			builder.WriteString(PROGRAM_DELIMITER)
		}
		builder.WriteString(strconv.FormatInt(value, 10))
	}

	return builder.String()
}

// DecodeHex parses an assembler style hex literal ("x2A" or "0x2A").
func DecodeHex(s string) (int64, error) {
	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}

	if i := strings.IndexAny(s, "xX"); i == 0 {
		s = "0" + s
	} else if i == -1 || i != 1 {
		return 0, errors.New("Invalid hex string")
	}

	result, err := strconv.ParseInt(s, 0, 64)

	if err != nil {
		return 0, err
	}

	if negative {
		result = -result
	}

	return result, nil
}

// DecodeInt parses a decimal literal with an optional leading '#'.
func DecodeInt(s string) (int64, error) {
	if i := strings.Index(s, "#"); i == 0 {
		s = s[1:]
	}

	return strconv.ParseInt(s, 10, 64)
}

// DecodeAddr accepts either notation, as typed at the debugger prompt.
func DecodeAddr(s string) (int64, error) {
	if strings.ContainsAny(s, "xX") {
		return DecodeHex(s)
	}

	return DecodeInt(s)
}
