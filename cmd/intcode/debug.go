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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/lassandro/gointcode/pkg/debugger"
	"github.com/lassandro/gointcode/pkg/encoding"
	"github.com/lassandro/gointcode/pkg/machine"
)

const debugPrompt = "\033[1;30m(dbg)\033[0m "
const inputPrompt = "input> "

var lastcmd []string
var shouldexit bool
var didreset bool
var repl *readline.Instance

var completer = readline.NewPrefixCompleter(
	readline.PcItem("break",
		readline.PcItem("add"),
		readline.PcItem("list"),
		readline.PcItem("remove"),
		readline.PcItem("clear"),
	),
	readline.PcItem("watch",
		readline.PcItem("add"),
		readline.PcItem("list"),
		readline.PcItem("remove"),
		readline.PcItem("clear"),
	),
	readline.PcItem("register", readline.PcItem("pc"), readline.PcItem("rb")),
	readline.PcItem("memory"),
	readline.PcItem("set"),
	readline.PcItem("jump"),
	readline.PcItem("dis"),
	readline.PcItem("source"),
	readline.PcItem("labels"),
	readline.PcItem("input"),
	readline.PcItem("output"),
	readline.PcItem("next"),
	readline.PcItem("continue"),
	readline.PcItem("reset"),
	readline.PcItem("clear"),
	readline.PcItem("help"),
	readline.PcItem("quit"),
)

func historyFile() string {
	home, err := os.UserHomeDir()

	if err != nil {
		return ""
	}

	return filepath.Join(home, ".intcode_history")
}

func newReadline(prompt string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile(),
		HistoryLimit:    500,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
}

// parseAddr accepts a label, a decimal address or a hex address.
func parseAddr(dbg *debugger.Debugger, s string) (int64, error) {
	if dbg.SymTable != nil {
		if addr, ok := dbg.SymTable.Lookup(s); ok {
			return addr, nil
		}
	}

	return encoding.DecodeAddr(s)
}

func parseCount(s string) (int, error) {
	count, err := strconv.Atoi(s)

	if err == nil && count < 1 {
		err = fmt.Errorf("invalid count %d", count)
	}

	return count, err
}

// parseRange handles the optional [addr] [count] arguments shared by the
// listing commands.
func parseRange(dbg *debugger.Debugger, mc *machine.MachineState, args []string, count int) (int64, int, bool) {
	addr := mc.Program
	var err error

	if len(args) > 2 {
		return 0, 0, false
	}

	if len(args) > 0 {
		if addr, err = parseAddr(dbg, args[0]); err != nil {
			log.Error(err)
			return 0, 0, false
		}
	}

	if len(args) > 1 {
		if count, err = parseCount(args[1]); err != nil {
			log.Error(err)
			return 0, 0, false
		}
	}

	return addr, count, true
}

func watchTypeName(wtype debugger.WatchpointType) string {
	switch wtype {
	case debugger.ReadWatch:
		return "read"
	case debugger.WriteWatch:
		return "write"
	case debugger.ReadWriteWatch:
		return "readwrite"
	}

	return "unknown"
}

func debugBreak(dbg *debugger.Debugger, args []string) {
	const usage = "break [add|list|remove|clear]"

	if len(args) == 0 {
		args = append(args, "l")
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "a", "add":
		const usage = "break add [addr|label]"

		if len(args) != 1 {
			fmt.Println(usage)
			return
		}

		addr, err := parseAddr(dbg, args[0])

		if err != nil {
			log.Error(err)
			return
		}

		if dbg.AddBreakpoint(addr) {
			fmt.Printf("Breakpoint added [%d]\n", addr)
		}

	case "l", "ls", "list":
		for i, breakpoint := range dbg.Breakpoints {
			fmt.Printf("#%d: %d\n", i, breakpoint.Addr)
		}

	case "r", "rm", "remove":
		const usage = "break remove [addr|label]"

		if len(args) != 1 {
			fmt.Println(usage)
			return
		}

		addr, err := parseAddr(dbg, args[0])

		if err != nil {
			log.Error(err)
			return
		}

		if dbg.RemoveBreakpoint(addr) {
			fmt.Printf("Breakpoint removed [%d]\n", addr)
		} else {
			fmt.Printf("No breakpoint at %d\n", addr)
		}

	case "clear":
		dbg.Breakpoints = nil
		fmt.Println("Breakpoints reset")

	default:
		fmt.Println(usage)
	}
}

func debugWatch(dbg *debugger.Debugger, args []string) {
	const usage = "watch [add|list|remove|clear]"

	if len(args) == 0 {
		args = append(args, "l")
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "a", "add":
		const usage = "watch add [addr|label] [read|write|readwrite]"

		if len(args) < 1 || len(args) > 2 {
			fmt.Println(usage)
			return
		}

		addr, err := parseAddr(dbg, args[0])

		if err != nil {
			log.Error(err)
			return
		}

		wtype := debugger.ReadWriteWatch

		if len(args) == 2 {
			switch args[1] {
			case "r", "read":
				wtype = debugger.ReadWatch
			case "w", "write":
				wtype = debugger.WriteWatch
			case "rw", "readwrite":
				wtype = debugger.ReadWriteWatch
			default:
				fmt.Println(usage)
				return
			}
		}

		dbg.AddWatchpoint(addr, wtype)
		fmt.Printf("Watchpoint added [%d] (%s)\n", addr, watchTypeName(wtype))

	case "l", "ls", "list":
		for i, watchpoint := range dbg.Watchpoints {
			fmt.Printf(
				"#%d: %d %s\n", i, watchpoint.Addr, watchTypeName(watchpoint.Type),
			)
		}

	case "r", "rm", "remove":
		const usage = "watch remove [addr|label]"

		if len(args) != 1 {
			fmt.Println(usage)
			return
		}

		addr, err := parseAddr(dbg, args[0])

		if err != nil {
			log.Error(err)
			return
		}

		if dbg.RemoveWatchpoint(addr) {
			fmt.Printf("Watchpoint removed [%d]\n", addr)
		} else {
			fmt.Printf("No watchpoint at %d\n", addr)
		}

	case "clear":
		dbg.Watchpoints = nil
		fmt.Println("Watchpoints reset")

	default:
		fmt.Println(usage)
	}
}

func debugReg(dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	const usage = "register [pc|rb] [value]"

	if len(args) == 0 {
		dbg.PrintRegisters(mc)
		return
	}

	if len(args) != 2 {
		fmt.Println(usage)
		return
	}

	value, err := encoding.DecodeInt(args[1])

	if err != nil {
		log.Error(err)
		return
	}

	switch strings.ToUpper(args[0]) {
	case "PC":
		mc.State.Program = value
	case "RB":
		mc.State.Relative = value
	default:
		fmt.Println(usage)
		return
	}

	fmt.Printf("\033[1m%s:\033[0m %d\n", strings.ToUpper(args[0]), value)
}

func debugJump(dbg *debugger.Debugger, mc *machine.MachineState, args []string) {
	const usage = "jump [addr|label]"

	if len(args) != 1 {
		fmt.Println(usage)
		return
	}

	addr, err := parseAddr(dbg, args[0])

	if err != nil {
		log.Error(err)
		return
	}

	mc.Program = addr
	fmt.Printf("\033[1mPC:\033[0m %d\n", addr)
}

func debugSet(dbg *debugger.Debugger, mc *machine.MachineState, args []string) {
	const usage = "set [addr|label] [value]"

	if len(args) != 2 {
		fmt.Println(usage)
		return
	}

	addr, err := parseAddr(dbg, args[0])

	if err != nil {
		log.Error(err)
		return
	}

	value, err := encoding.DecodeInt(args[1])

	if err != nil {
		log.Error(err)
		return
	}

	if err := mc.Grow(addr); err != nil {
		log.Error(err)
		return
	}

	mc.Memory[addr] = value
	dbg.PrintMem(mc, addr, 1)
}

func debugInput(mc *machine.Machine, args []string) {
	const usage = "input [values]"

	if len(args) == 0 {
		fmt.Println(usage)
		return
	}

	// Split arguments are rejoined; only text input keeps its spaces
	sep := ""
	if asciivar {
		sep = " "
	}

	if err := insertLine(mc, strings.Join(args, sep), asciivar); err != nil {
		log.Error(err)
		return
	}

	fmt.Printf("%d input values pending\n", mc.Pending())
}

func debugHelp() {
	fmt.Print(`break    [add|list|remove|clear] [addr]   manage breakpoints
watch    [add|list|remove|clear] [addr]   manage watchpoints
register [pc|rb] [value]                  show or set registers
memory   [addr] [count]                   dump memory
set      addr value                       write memory
jump     addr                             move the program counter
dis      [addr] [count]                   disassemble
source   [addr] [count]                   show assembly source
labels                                    list labels
input    values                           queue input
output                                    show buffered output
next                                      step one instruction
continue                                  run until the next break
reset                                     reload the program
quit                                      exit
`)
}

func debugREPL(dbg *debugger.Debugger, mc *machine.Machine) {
	if shouldexit {
		return
	}

	repl.SetPrompt(debugPrompt)

	for {
		line, err := repl.Readline()

		switch err {
		case nil:
		case readline.ErrInterrupt:
			continue
		case io.EOF:
			shouldexit = true
			return
		default:
			log.Error(err)
			shouldexit = true
			return
		}

		args := strings.Fields(line)

		if len(args) == 0 {
			if len(lastcmd) == 0 {
				continue
			}
			args = lastcmd
		} else {
			lastcmd = make([]string, len(args))
			copy(lastcmd, args)
		}

		cmd := args[0]
		args = args[1:]

		switch cmd {
		case "b", "bp", "break", "breakpoint":
			debugBreak(dbg, args)

		case "w", "wp", "watch", "watchpoint":
			debugWatch(dbg, args)

		case "r", "reg", "register", "registers":
			debugReg(dbg, mc, args)

		case "m", "mem", "memory":
			if addr, count, ok := parseRange(dbg, &mc.State, args, 8); ok {
				dbg.PrintMem(&mc.State, addr, int64(count))
			} else {
				fmt.Println("memory [addr|label] [count]")
			}

		case "set":
			debugSet(dbg, &mc.State, args)

		case "j", "jmp", "jump":
			debugJump(dbg, &mc.State, args)

		case "d", "dis", "disassemble":
			if addr, count, ok := parseRange(dbg, &mc.State, args, 8); ok {
				dbg.PrintDisassembly(&mc.State, addr, count)
			} else {
				fmt.Println("dis [addr|label] [count]")
			}

		case "s", "src", "source":
			if addr, count, ok := parseRange(dbg, &mc.State, args, 8); ok {
				dbg.PrintSource(addr, count)
			} else {
				fmt.Println("source [addr|label] [count]")
			}

		case "l", "label", "labels":
			dbg.PrintLabels()

		case "i", "in", "input":
			debugInput(mc, args)

		case "o", "out", "output":
			fmt.Println(encoding.EncodeProgram(mc.Outputs()))

		case "c", "continue":
			dbg.Break.Store(false)
			return

		case "n", "next":
			dbg.Break.Store(true)
			return

		case "q", "quit", "exit":
			shouldexit = true
			dbg.Break.Store(false)
			return

		case "clear":
			fmt.Print("\033[H\033[2J")

		case "reset":
			dbg.Reset(mc)
			resetInput(mc)
			didreset = true
			fmt.Println("Program reset")
			dbg.PrintDisassembly(&mc.State, mc.State.Program, 1)

		case "h", "help":
			debugHelp()

		default:
			fmt.Printf("error: '%s' is not a valid command\n", cmd)
		}
	}
}

// resetInput queues the -input values again after a reset.
func resetInput(mc *machine.Machine) {
	if inputvar != "" {
		if err := insertLine(mc, inputvar, false); err != nil {
			log.Error(err)
		}
	}
}

func handleBreak(dbg *debugger.Debugger, mc *machine.Machine) {
	if !dbg.Break.Load() {
		fmt.Println()
		fmt.Println("Program stopped")
	}

	dbg.PrintDisassembly(&mc.State, mc.State.Program, 1)
	debugREPL(dbg, mc)
}

func handleWatch(hit debugger.WatchHit, dbg *debugger.Debugger, mc *machine.Machine) {
	verb := "read"
	if hit.Access == debugger.WriteWatch {
		verb = "written"
	}

	fmt.Println()
	fmt.Printf(
		"Watchpoint [%d] %s by instruction at %d\n",
		hit.Watchpoint.Addr, verb, hit.Program,
	)

	dbg.PrintMem(&mc.State, hit.Watchpoint.Addr, 1)
	debugREPL(dbg, mc)
}

// stopped opens the prompt after the machine halts or faults. It reports
// whether the user reset the machine to run again.
func stopped(dbg *debugger.Debugger, mc *machine.Machine) bool {
	didreset = false
	debugREPL(dbg, mc)

	return didreset && !shouldexit
}

func debugSession(ctx context.Context, dbg *debugger.Debugger, mc *machine.Machine) int {
	var err error

	if repl, err = newReadline(debugPrompt); err != nil {
		log.Error(err)
		return 1
	}

	defer repl.Close()

	fmt.Println("Type 'help' for commands, 'continue' to run")
	dbg.PrintDisassembly(&mc.State, mc.State.Program, 1)
	debugREPL(dbg, mc)

	code := 0

	for !shouldexit {
		if err := ctx.Err(); err != nil {
			log.Error(err)
			return 1
		}

		status, err := mc.Step()
		writeOutputs(os.Stdout, mc, asciivar)

		switch {
		case err != nil:
			log.WithField("pc", mc.State.Program).Error(err)
			fmt.Println("Machine faulted, 'reset' to restart")

			code = 1
			if !stopped(dbg, mc) {
				return code
			}

		case status == machine.STATUS_DONE:
			fmt.Println("Program halted, 'reset' to restart")

			code = 0
			if !stopped(dbg, mc) {
				return code
			}

		case status == machine.STATUS_WAIT:
			repl.SetPrompt(inputPrompt)
			line, err := repl.Readline()

			switch err {
			case nil:
				if err := insertLine(mc, line, asciivar); err != nil {
					log.Error(err)
				}

			case readline.ErrInterrupt:
				handleBreak(dbg, mc)

			default:
				shouldexit = true
			}
		}
	}

	return code
}
