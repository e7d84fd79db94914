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
	"context"
	"encoding/gob"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/felixge/fgprof"
	"github.com/sirupsen/logrus"
	"github.com/snowzach/rotatefilehook"

	"github.com/lassandro/gointcode/pkg/assembler"
	"github.com/lassandro/gointcode/pkg/debugger"
	"github.com/lassandro/gointcode/pkg/encoding"
	"github.com/lassandro/gointcode/pkg/machine"
	"github.com/lassandro/gointcode/pkg/pipeline"
)

var helpvar bool
var asciivar bool
var debugvar bool
var statsvar bool
var verbosevar bool
var feedbackvar bool
var inputvar string
var phasesvar string
var profilevar string
var logfilevar string
var workersvar int
var timeoutvar time.Duration

var log = logrus.New()

const usage = "intcode [-ascii] [-debug] [-input 1,2] [-phases 0,1,2] [-timeout 10s] [-stats] [-profile file] [-logfile file] [-v] filename"

func init() {
	flag.BoolVar(&helpvar, "help", false, "Displays command usage")
	flag.BoolVar(&asciivar, "ascii", false, "Exchanges input and output as ASCII text")
	flag.BoolVar(&debugvar, "debug", false, "Runs the machine in a debug CLI")
	flag.BoolVar(&statsvar, "stats", false, "Reports instruction and memory usage on exit")
	flag.BoolVar(&verbosevar, "v", false, "Enables debug logging")
	flag.BoolVar(
		&feedbackvar, "feedback", false,
		"Connects the last machine of a -phases pipeline back to the first",
	)
	flag.StringVar(
		&inputvar, "input", "",
		"Comma-separated values queued as input before the machine starts",
	)
	flag.StringVar(
		&phasesvar, "phases", "",
		"Searches every ordering of these comma-separated phase values for "+
			"the largest signal of a machine pipeline",
	)
	flag.StringVar(
		&profilevar, "profile", "",
		"Writes a wall-clock pprof profile of the run to this file",
	)
	flag.StringVar(
		&logfilevar, "logfile", "",
		"Also writes log entries to this file, rotated as it grows",
	)
	flag.IntVar(
		&workersvar, "workers", 0,
		"Maximum pipelines run in parallel by -phases (0 for no limit)",
	)
	flag.DurationVar(
		&timeoutvar, "timeout", 0,
		"Stops the machine after this long (0 for no limit)",
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
	pipeline.Log = log

	if logfilevar != "" {
		hook, err := rotatefilehook.NewRotateFileHook(rotatefilehook.RotateFileConfig{
			Filename:   logfilevar,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Level:      level,
			Formatter:  &logrus.JSONFormatter{},
		})

		if err != nil {
			log.WithError(err).Warn("unable to open log file")
		} else {
			log.AddHook(hook)
		}
	}
}

// startProfile begins a wall-clock profile, returning the function that
// writes it out.
func startProfile(filename string) (func(), error) {
	file, err := os.Create(filename)

	if err != nil {
		return nil, err
	}

	stop := fgprof.Start(file, fgprof.FormatPprof)

	return func() {
		if err := stop(); err != nil {
			log.WithError(err).Error("error writing profile")
		}

		file.Close()
	}, nil
}

func stdinPiped() bool {
	stat, err := os.Stdin.Stat()
	return err == nil && stat.Mode()&os.ModeCharDevice == 0
}

func readProgram(args []string) (string, string, error) {
	if len(args) == 0 && stdinPiped() {
		text, err := io.ReadAll(os.Stdin)
		return string(text), "<stdin>", err
	}

	if len(args) != 1 {
		return "", "", errors.New(usage)
	}

	text, err := os.ReadFile(args[0])
	return string(text), args[0], err
}

// writeOutputs drains the machine's output queue to w. In ASCII mode values
// outside the ASCII range are written as numbers on their own line.
func writeOutputs(w io.Writer, mc *machine.Machine, ascii bool) {
	for {
		if ascii {
			if text, _ := mc.PopASCII(); text != "" {
				fmt.Fprint(w, text)
			}
		}

		value, ok := mc.Pop()

		if !ok {
			return
		}

		fmt.Fprintln(w, value)
	}
}

// insertLine queues one line of user input.
func insertLine(mc *machine.Machine, line string, ascii bool) error {
	if ascii {
		mc.InsertASCII(line + "\n")
		return nil
	}

	values, err := encoding.DecodeProgram(line)

	if err != nil {
		return err
	}

	for _, value := range values {
		mc.Insert(value)
	}

	return nil
}

func loadSymbols(dbg *debugger.Debugger, filename string) {
	symfile := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".icdb"

	file, err := os.Open(symfile)

	if err != nil {
		log.WithError(err).Debug("no symbol table loaded")
		return
	}

	defer file.Close()

	var symtable assembler.SymTable

	if err := gob.NewDecoder(file).Decode(&symtable); err != nil {
		log.WithError(err).Error("error loading symbol table")
		return
	}

	dbg.SymTable = &symtable

	if symtable.Source != "" {
		if source, err := os.ReadFile(symtable.Source); err == nil {
			dbg.Source = strings.NewReader(string(source))
		} else {
			log.WithError(err).Error("error loading source file")
		}
	}
}

func printStats(mc *machine.Machine, elapsed time.Duration) {
	fmt.Fprintf(
		os.Stderr,
		"%s instructions in %s, %s memory\n",
		humanize.Comma(int64(mc.State.Steps)),
		elapsed.Round(time.Microsecond),
		humanize.IBytes(uint64(len(mc.State.Memory))*8),
	)
}

func search(ctx context.Context, mc *machine.Machine) int {
	phases, err := encoding.DecodeProgram(phasesvar)

	if err != nil {
		log.WithError(err).Error("invalid -phases")
		return 1
	}

	start := time.Now()
	result, err := pipeline.Search(
		ctx, mc.State.Memory, phases, feedbackvar, workersvar,
	)

	if err != nil {
		log.Error(err)
		return 1
	}

	fmt.Println(result.Signal)

	log.WithFields(logrus.Fields{
		"phases":  encoding.EncodeProgram(result.Phases),
		"elapsed": time.Since(start),
	}).Info("best phase ordering")

	return 0
}

func run(ctx context.Context, mc *machine.Machine) int {
	var readLine func() (string, error)

	if stdinPiped() || !isTerminal(int(os.Stdin.Fd())) {
		reader := bufio.NewReader(os.Stdin)

		readLine = func() (string, error) {
			line, err := reader.ReadString('\n')

			if err == io.EOF && line != "" {
				err = nil
			}

			return strings.TrimRight(line, "\r\n"), err
		}
	} else {
		rl, err := newReadline("input> ")

		if err != nil {
			log.Error(err)
			return 1
		}

		defer rl.Close()
		readLine = rl.Readline
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for {
		status, err := mc.RunContext(ctx)
		writeOutputs(out, mc, asciivar)

		if err != nil {
			log.WithFields(logrus.Fields{
				"pc":    mc.State.Program,
				"steps": mc.State.Steps,
			}).Error(err)

			return 1
		}

		if status == machine.STATUS_DONE {
			return 0
		}

		out.Flush()

		if err := readInput(readLine, mc, asciivar); err != nil {
			log.WithError(err).Error("input closed while machine was waiting")
			return 1
		}
	}
}

// readInput prompts until a line is queued. Lines that fail to parse are
// reported and asked for again.
func readInput(readLine func() (string, error), mc *machine.Machine, ascii bool) error {
	for {
		line, err := readLine()

		if err != nil {
			return err
		}

		if err := insertLine(mc, line, ascii); err != nil {
			log.Error(err)
			continue
		}

		return nil
	}
}

func intcode() int {
	flag.Parse()
	setupLog()

	if helpvar {
		fmt.Println(usage)
		flag.PrintDefaults()
		return 0
	}

	text, filename, err := readProgram(flag.Args())

	if err != nil {
		log.Error(err)
		return 1
	}

	mc, err := machine.New(text)

	if err != nil {
		log.WithField("file", filename).Error(err)
		return 1
	}

	log.WithFields(logrus.Fields{
		"file":   filename,
		"memory": humanize.Comma(int64(len(mc.State.Memory))),
	}).Debug("program loaded")

	if inputvar != "" {
		if err := insertLine(mc, inputvar, false); err != nil {
			log.WithError(err).Error("invalid -input")
			return 1
		}
	}

	if profilevar != "" {
		stop, err := startProfile(profilevar)

		if err != nil {
			log.WithError(err).Error("unable to start profile")
			return 1
		}

		defer stop()
	}

	ctx := context.Background()

	if timeoutvar > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeoutvar)
		defer cancel()
	}

	if phasesvar != "" {
		return search(ctx, mc)
	}

	start := time.Now()
	var code int

	if debugvar {
		if filename == "<stdin>" {
			log.Error("-debug needs a program file, stdin is used by the debugger")
			return 1
		}

		dbg := &debugger.Debugger{
			Program:     append([]int64(nil), mc.State.Memory...),
			HandleBreak: handleBreak,
			HandleWatch: handleWatch,
		}

		loadSymbols(dbg, filename)
		mc.Debugger = dbg

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		defer signal.Stop(c)

		go func() {
			for range c {
				dbg.Break.Store(true)
			}
		}()

		code = debugSession(ctx, dbg, mc)
	} else {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt)
		defer stop()

		code = run(ctx, mc)
	}

	if statsvar {
		printStats(mc, time.Since(start))
	}

	return code
}

func main() {
	os.Exit(intcode())
}
