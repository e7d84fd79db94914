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
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lassandro/gointcode/pkg/encoding"
	"github.com/lassandro/gointcode/pkg/machine"
)

type labelRef struct {
	Label    string
	Addr     int64
	Position Cursor
}

type assembler struct {
	result   []int64
	errs     []error
	labels   map[string]int64
	refs     []labelRef
	symtable *SymTable
}

func parseDirective(ident string) DirectiveType {
	if directive, ok := directives[strings.ToUpper(ident)]; ok {
		return directive
	}

	return DIRECTIVE_INVALID
}

func parseInstruction(token *Token) (machine.Opcode, bool) {
	if token.Type != TOKEN_IDENT || token.Mode != machine.MODE_POSITION {
		return 0, false
	}

	op, ok := instructions[strings.ToUpper(token.Value)]
	return op, ok
}

func parseLiteral(token *Token) (int64, error) {
	var result int64
	var err error

	if strings.ContainsAny(token.Value, "xX") {
		result, err = encoding.DecodeHex(token.Value)
	} else {
		result, err = encoding.DecodeInt(token.Value)
	}

	if err != nil {
		return 0, &InvalidLiteralError{token.Position}
	}

	return result, nil
}

// Hex literals have no leading zero (x2A), so they are told apart from
// identifiers by their digits.
func isHexLiteral(s string) bool {
	if len(s) < 2 || (s[0] != 'x' && s[0] != 'X') {
		return false
	}

	for _, char := range s[1:] {
		if !unicode.Is(unicode.ASCII_Hex_Digit, char) {
			return false
		}
	}

	return true
}

func isWordChar(char byte) bool {
	return char == '_' ||
		('a' <= char && char <= 'z') ||
		('A' <= char && char <= 'Z') ||
		('0' <= char && char <= '9')
}

// tokenize splits a single source line. Commas between operands are
// optional, but may not be doubled or trail the line.
func tokenize(line string, cursor Cursor) (tokens []Token, errs []error) {
	position := func(start, end int) Cursor {
		return Cursor{
			Line:     cursor.Line,
			Column:   start + 1,
			Byte:     cursor.LineByte + int64(start),
			Size:     int64(end - start),
			LineByte: cursor.LineByte,
		}
	}

	comma := -1

	for i := 0; i < len(line); {
		char, size := utf8.DecodeRuneInString(line[i:])

		switch {
		// Whitespace
		case unicode.IsSpace(char):
			i += size

		// Comments
		case char == ';':
			i = len(line)

		// Operand Separator
		case char == ',':
			if comma != -1 || len(tokens) == 0 {
				errs = append(
					errs, &UnexpectedCharacterError{position(i, i+1), char},
				)
			}

			comma = i
			i += size

		// String Literal
		case char == '"':
			end := -1

			for j := i + 1; j < len(line); j++ {
				if line[j] == '\\' {
					j++
				} else if line[j] == '"' {
					end = j + 1
					break
				}
			}

			if end == -1 {
				errs = append(errs, &InvalidStringError{position(i, len(line))})
				i = len(line)
				break
			}

			tokens = append(tokens, Token{
				Type:     TOKEN_STRING,
				Position: position(i, end),
				Value:    line[i:end],
			})

			comma = -1
			i = end

		case char > unicode.MaxASCII:
			errs = append(errs, &OversizedCharacterError{position(i, i+size)})
			i += size

		// Identifiers, directives and literals, optionally mode prefixed
		case char == PREFIX_IMMEDIATE || char == PREFIX_RELATIVE ||
			char == '.' || char == '-' || isWordChar(line[i]):

			start := i
			mode := machine.MODE_POSITION

			if char == PREFIX_IMMEDIATE {
				mode = machine.MODE_IMMEDIATE
				i++
			} else if char == PREFIX_RELATIVE {
				mode = machine.MODE_RELATIVE
				i++
			}

			end := i

			if end < len(line) && (line[end] == '.' || line[end] == '-') {
				end++
			}

			for end < len(line) && isWordChar(line[end]) {
				end++
			}

			value := line[i:end]
			token := Token{
				Mode:     mode,
				Position: position(start, end),
				Value:    value,
			}

			switch {
			case value == "" || value == "-" || value == ".":
				errs = append(
					errs,
					&UnexpectedCharacterError{position(start, start+1), char},
				)

				if end == start {
					end++
				}

				i = end
				continue

			case value[0] == '.':
				token.Type = TOKEN_DIRECTIVE

				if mode != machine.MODE_POSITION {
					errs = append(
						errs,
						&UnexpectedCharacterError{position(start, start+1), char},
					)
				}

			case value[0] == '-' || unicode.IsDigit(rune(value[0])):
				token.Type = TOKEN_LITERAL

			case isHexLiteral(value):
				token.Type = TOKEN_LITERAL

			default:
				token.Type = TOKEN_IDENT
			}

			tokens = append(tokens, token)
			comma = -1
			i = end

		default:
			errs = append(
				errs, &UnexpectedCharacterError{position(i, i+size), char},
			)
			i += size
		}
	}

	if comma != -1 {
		errs = append(
			errs, &UnexpectedCharacterError{position(comma, comma+1), ','},
		)
	}

	return
}

// emit appends an operand or data word. Labels are always resolved after
// the whole source has been read.
func (asm *assembler) emit(token *Token) {
	switch token.Type {
	case TOKEN_LITERAL:
		literal, err := parseLiteral(token)

		if err != nil {
			asm.errs = append(asm.errs, err)
		}

		asm.result = append(asm.result, literal)

	case TOKEN_IDENT:
		asm.refs = append(
			asm.refs,
			labelRef{token.Value, int64(len(asm.result)), token.Position},
		)
		asm.result = append(asm.result, 0)

	default:
		asm.errs = append(
			asm.errs,
			&InvalidOperandError{
				token.Position,
				[]TokenType{TOKEN_LITERAL, TOKEN_IDENT},
				token.Type,
			},
		)
		asm.result = append(asm.result, 0)
	}
}

// MNEMONIC op, op, op
func (asm *assembler) instruction(op machine.Opcode, keyword *Token, operands []Token) {
	info, _ := machine.LookupOpcode(op)

	if count := len(operands); count != info.Reads+info.Writes {
		asm.errs = append(
			asm.errs,
			&InvalidNumArgumentsError{
				keyword.Position, info.Reads + info.Writes, count,
			},
		)

		return
	}

	word := int64(op)
	scale := int64(100)

	for i, operand := range operands {
		if i >= info.Reads && operand.Mode == machine.MODE_IMMEDIATE {
			asm.errs = append(
				asm.errs, &InvalidModeError{operand.Position, operand.Mode},
			)
		}

		word += int64(operand.Mode) * scale
		scale *= 10
	}

	asm.result = append(asm.result, word)

	for i := range operands {
		asm.emit(&operands[i])
	}
}

func (asm *assembler) directive(keyword *Token, operands []Token) {
	switch parseDirective(keyword.Value) {
	// .DATA #, label, ...
	case DIRECTIVE_DATA:
		if len(operands) == 0 {
			asm.errs = append(
				asm.errs, &InvalidNumArgumentsError{keyword.Position, 1, 0},
			)

			break
		}

		for i := range operands {
			if mode := operands[i].Mode; mode != machine.MODE_POSITION {
				asm.errs = append(
					asm.errs, &InvalidModeError{operands[i].Position, mode},
				)
			}

			asm.emit(&operands[i])
		}

	// .BLKW #
	case DIRECTIVE_BLKW:
		if count := len(operands); count != 1 {
			asm.errs = append(
				asm.errs, &InvalidNumArgumentsError{keyword.Position, 1, count},
			)

			break
		}

		if operands[0].Type != TOKEN_LITERAL {
			asm.errs = append(
				asm.errs,
				&InvalidOperandError{
					operands[0].Position,
					[]TokenType{TOKEN_LITERAL},
					operands[0].Type,
				},
			)

			break
		}

		literal, err := parseLiteral(&operands[0])

		if err != nil {
			asm.errs = append(asm.errs, err)
			break
		}

		if literal < 0 {
			asm.errs = append(asm.errs, &InvalidLiteralError{operands[0].Position})
			break
		}

		if int64(len(asm.result))+literal >= machine.MEMORY_LIMIT {
			asm.errs = append(asm.errs, &OversizedBinaryError{})
			break
		}

		asm.result = append(asm.result, make([]int64, literal)...)

	// .ASCII "..."
	case DIRECTIVE_ASCII:
		if count := len(operands); count != 1 {
			asm.errs = append(
				asm.errs, &InvalidNumArgumentsError{keyword.Position, 1, count},
			)

			break
		}

		if operands[0].Type != TOKEN_STRING {
			asm.errs = append(
				asm.errs,
				&InvalidOperandError{
					operands[0].Position,
					[]TokenType{TOKEN_STRING},
					operands[0].Type,
				},
			)

			break
		}

		s, err := strconv.Unquote(operands[0].Value)

		if err != nil {
			asm.errs = append(asm.errs, &InvalidStringError{operands[0].Position})
			break
		}

		for i := 0; i < len(s); i++ {
			asm.result = append(asm.result, int64(s[i]))
		}

	default:
		asm.errs = append(
			asm.errs, &UnknownIdentifierError{keyword.Position, keyword.Value},
		)
	}
}

func (asm *assembler) line(tokens []Token, cursor Cursor) {
	var label *Token = nil
	var keyword *Token = nil
	var operands []Token

	if _, ok := parseInstruction(&tokens[0]); ok || tokens[0].Type == TOKEN_DIRECTIVE {
		keyword = &tokens[0]
		operands = tokens[1:]
	} else if tokens[0].Type == TOKEN_IDENT && tokens[0].Mode == machine.MODE_POSITION {
		label = &tokens[0]

		if len(tokens) > 1 {
			keyword = &tokens[1]
			operands = tokens[2:]
		}
	} else {
		asm.errs = append(
			asm.errs,
			&UnknownIdentifierError{tokens[0].Position, tokens[0].Value},
		)

		return
	}

	if label != nil {
		if _, exists := asm.labels[label.Value]; !exists {
			asm.labels[label.Value] = int64(len(asm.result))
		} else {
			asm.errs = append(
				asm.errs, &RedeclaredLabelError{label.Position, label.Value},
			)
		}

		// No need to assemble label-only statements
		if keyword == nil {
			return
		}
	}

	start := int64(len(asm.result))

	if keyword.Type == TOKEN_DIRECTIVE {
		asm.directive(keyword, operands)
	} else if op, ok := parseInstruction(keyword); ok {
		asm.instruction(op, keyword, operands)
	} else {
		asm.errs = append(
			asm.errs, &UnknownIdentifierError{keyword.Position, keyword.Value},
		)
	}

	if asm.symtable != nil && int64(len(asm.result)) > start {
		asm.symtable.Symbols[start] = cursor.LineByte
	}
}

// AssembleIntcodeSource assembles source into program words, collecting
// every error found rather than stopping at the first. When symtable is
// non-nil it receives line offsets and label addresses.
func AssembleIntcodeSource(input io.Reader, symtable *SymTable) (result []int64, errs []error) {
	asm := assembler{
		result:   make([]int64, 0),
		errs:     make([]error, 0),
		labels:   make(map[string]int64),
		symtable: symtable,
	}

	var scanner = bufio.NewScanner(input)
	var cursor = Cursor{Line: 1, Column: 0, Size: 0, Byte: 0}

	for scanner.Scan() {
		line := scanner.Text()
		cursor.Size = int64(len(line))

		tokens, lineErrs := tokenize(line, cursor)

		// Pass any potential assembler errors if we already had parser errors
		if len(lineErrs) > 0 {
			asm.errs = append(asm.errs, lineErrs...)
		} else if len(tokens) > 0 {
			asm.line(tokens, cursor)
		}

		if len(asm.result) >= machine.MEMORY_LIMIT {
			asm.errs = append(asm.errs, &OversizedBinaryError{})
			return asm.result, asm.errs
		}

		cursor.Line++
		cursor.Byte += int64(len(line) + 1)
		cursor.LineByte += int64(len(line) + 1)
	}

	if err := scanner.Err(); err != nil {
		asm.errs = append(asm.errs, err)
	}

	// Label
	// - Validate and resolve label references
	// - Add labels to symbol table
	for _, ref := range asm.refs {
		addr, exists := asm.labels[ref.Label]

		if !exists {
			asm.errs = append(asm.errs, &UnknownLabelError{ref.Position, ref.Label})
			continue
		}

		asm.result[ref.Addr] = addr
	}

	if symtable != nil {
		for label, addr := range asm.labels {
			symtable.Labels[addr] = label
		}
	}

	return asm.result, asm.errs
}
