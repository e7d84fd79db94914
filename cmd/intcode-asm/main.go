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

package main

import (
	"bufio"
	"encoding/gob"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lassandro/gointcode/pkg/assembler"
	"github.com/lassandro/gointcode/pkg/encoding"
)

var helpvar bool
var debugvar bool
var disasmvar bool
var verbosevar bool
var outvar string

var log = logrus.New()

const usage = "intcode-asm [-debug] [-disassemble] [-out outfile] filename"

func init() {
	flag.BoolVar(&helpvar, "help", false, "Displays command usage")
	flag.BoolVar(
		&debugvar, "debug", false,
		"Specifies whether to generate debugging information as a symbol "+
			"table. The table will use the output filename with extension "+
			"'.icdb'",
	)
	flag.BoolVar(
		&disasmvar, "disassemble", false,
		"Reads program text instead and writes it back as assembly source, "+
			"to stdout unless -out is given",
	)
	flag.BoolVar(&verbosevar, "v", false, "Enables debug logging")
	flag.StringVar(
		&outvar, "out", "",
		"Specifies a precise name for the output file, "+
			"overriding the default means of determining it ('-' for stdout)",
	)
}

func setupLog() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	level := logrus.InfoLevel

	if env, ok := os.LookupEnv("INTCODE_LOG_LEVEL"); ok {
		if parsed, err := logrus.ParseLevel(env); err == nil {
			level = parsed
		} else {
			log.Warn(err)
		}
	}

	if verbosevar {
		level = logrus.DebugLevel
	}

	log.SetLevel(level)
}

func symbolFile(outfile string) string {
	if outfile == "-" {
		outfile = "out.ic"
	}

	return strings.TrimSuffix(outfile, filepath.Ext(outfile)) + ".icdb"
}

// printTokenError writes err followed by the offending source line with the
// token underlined.
func printTokenError(w io.Writer, name string, input io.ReadSeeker, err error) {
	tokenErr, ok := err.(assembler.TokenError)

	if !ok {
		fmt.Fprintf(w, "\033[1m%s:\033[0m %s\n", name, err)
		return
	}

	cursor := tokenErr.GetPosition()

	if _, seekErr := input.Seek(cursor.LineByte, io.SeekStart); seekErr != nil {
		fmt.Fprintf(w, "\033[1m%s:\033[0m %s\n", name, err)
		return
	}

	line, _ := bufio.NewReader(input).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")

	size := int(cursor.Size)
	if size < 1 {
		size = 1
	}

	underline := strings.Repeat(" ", int(cursor.Byte-cursor.LineByte)) +
		"^" + strings.Repeat("~", size-1)

	fmt.Fprintf(
		w, "\033[1m%s:%d:\033[0m %s\n%s\n\033[31m%s\033[0m\n",
		name, cursor.Line, err, line, underline,
	)
}

// disassemble writes program text as assembly source that assembles back to
// the same program.
func disassemble(w io.Writer, input io.Reader) error {
	text, err := io.ReadAll(input)

	if err != nil {
		return err
	}

	program, err := encoding.DecodeProgram(string(text))

	if err != nil {
		return err
	}

	out := bufio.NewWriter(w)

	for _, line := range assembler.DisassembleProgram(program, nil) {
		fmt.Fprintln(out, line)
	}

	return out.Flush()
}

func intcodeAsm() int {
	flag.Parse()
	setupLog()

	if helpvar {
		fmt.Println(usage)
		flag.PrintDefaults()
		return 0
	}

	args := flag.Args()

	// Disassembly only writes a file when asked to
	disasmout := outvar

	var name string
	var infile string
	var input io.ReadSeeker

	if stat, _ := os.Stdin.Stat(); len(args) == 0 && stat.Mode()&os.ModeCharDevice == 0 {
		source, err := io.ReadAll(os.Stdin)

		if err != nil {
			log.Error(err)
			return 1
		}

		input = strings.NewReader(string(source))
		name = "<stdin>"

		if outvar == "" {
			outvar = "out.ic"
		}
	} else {
		if len(args) != 1 {
			log.Error(usage)
			return 1
		}

		file, err := os.Open(args[0])

		if err != nil {
			log.Error(err)
			return 1
		}

		defer file.Close()

		name = filepath.Base(file.Name())

		if stat, err := file.Stat(); err != nil {
			log.Error(err)
			return 1
		} else if stat.IsDir() {
			log.Errorf("%s is not a valid assembly file", name)
			return 1
		}

		input = file
		infile = file.Name()

		if outvar == "" {
			outvar = strings.TrimSuffix(name, filepath.Ext(name)) + ".ic"
		}
	}

	if disasmvar {
		var out io.Writer = os.Stdout

		if disasmout != "" && disasmout != "-" {
			file, err := os.Create(disasmout)

			if err != nil {
				log.WithError(err).Error("error creating output file")
				return 1
			}

			defer file.Close()
			out = file
		}

		if err := disassemble(out, input); err != nil {
			log.WithField("file", name).Error(err)
			return 1
		}

		return 0
	}

	var symtable *assembler.SymTable

	if debugvar {
		source := ""

		if infile != "" {
			var err error
			if source, err = filepath.Abs(infile); err != nil {
				log.Warn(err)
				source = ""
			}
		}

		symtable = assembler.NewSymTable(source)
	}

	result, errs := assembler.AssembleIntcodeSource(input, symtable)

	if len(errs) > 0 {
		for _, err := range errs {
			printTokenError(os.Stderr, name, input, err)
		}

		log.WithField("errors", len(errs)).Error("assembly failed")
		return 1
	}

	text := encoding.EncodeProgram(result) + "\n"

	if outvar == "-" {
		fmt.Print(text)
	} else if err := os.WriteFile(outvar, []byte(text), 0666); err != nil {
		log.WithError(err).Error("error writing output file")
		return 1
	}

	log.WithFields(logrus.Fields{
		"out":   outvar,
		"words": len(result),
	}).Debug("assembled")

	if symtable != nil {
		filename := symbolFile(outvar)

		file, err := os.Create(filename)

		if err != nil {
			log.WithError(err).Error("error creating symbol table")
			return 1
		}

		defer file.Close()

		if err := gob.NewEncoder(file).Encode(symtable); err != nil {
			log.WithError(err).Error("error writing symbol table")
			return 1
		}
	}

	return 0
}

func main() {
	os.Exit(intcodeAsm())
}
