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

package debugger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/lassandro/gointcode/pkg/assembler"
	"github.com/lassandro/gointcode/pkg/machine"
)

const (
	styleBold  = "\033[1m"
	styleDim   = "\033[1;30m"
	styleReset = "\033[0m"
)

func (dbg *Debugger) output() io.Writer {
	if dbg.Output == nil {
		return os.Stdout
	}

	return dbg.Output
}

func (dbg *Debugger) labels() map[int64]string {
	if dbg.SymTable == nil {
		return nil
	}

	return dbg.SymTable.Labels
}

func (dbg *Debugger) watch(addr int64, access WatchpointType, mc *machine.Machine) {
	for _, watchpoint := range dbg.Watchpoints {
		if watchpoint.Type&access == 0 || watchpoint.Addr != addr {
			continue
		}

		dbg.hits = append(dbg.hits, WatchHit{
			Watchpoint: watchpoint,
			Access:     access,
			Program:    mc.State.Program,
		})

		break
	}
}

// Step delivers the watch hits of the instruction that just completed, then
// breaks if single stepping or if the next instruction has a breakpoint.
func (dbg *Debugger) Step(mc *machine.Machine) {
	hits := dbg.hits
	dbg.hits = nil

	for _, hit := range hits {
		if dbg.HandleWatch != nil {
			dbg.HandleWatch(hit, dbg, mc)
		}
	}

	if dbg.HandleBreak == nil {
		return
	}

	if dbg.Break.Load() {
		dbg.HandleBreak(dbg, mc)
		return
	}

	for _, breakpoint := range dbg.Breakpoints {
		if mc.State.Program == breakpoint.Addr {
			dbg.HandleBreak(dbg, mc)
			break
		}
	}
}

// Fault discards the watch hits of an instruction that did not complete.
func (dbg *Debugger) Fault(err error, mc *machine.Machine) {
	dbg.hits = nil
}

func (dbg *Debugger) Read(addr int64, mc *machine.Machine) {
	dbg.watch(addr, ReadWatch, mc)
}

func (dbg *Debugger) Write(addr int64, mc *machine.Machine) {
	dbg.watch(addr, WriteWatch, mc)
}

// AddBreakpoint reports false if addr already has a breakpoint.
func (dbg *Debugger) AddBreakpoint(addr int64) bool {
	for _, breakpoint := range dbg.Breakpoints {
		if breakpoint.Addr == addr {
			return false
		}
	}

	dbg.Breakpoints = append(dbg.Breakpoints, Breakpoint{addr})
	return true
}

func (dbg *Debugger) RemoveBreakpoint(addr int64) bool {
	for i, breakpoint := range dbg.Breakpoints {
		if breakpoint.Addr == addr {
			dbg.Breakpoints = append(dbg.Breakpoints[:i], dbg.Breakpoints[i+1:]...)
			return true
		}
	}

	return false
}

// AddWatchpoint replaces the access type of an existing watchpoint on addr.
func (dbg *Debugger) AddWatchpoint(addr int64, watchType WatchpointType) {
	for i, watchpoint := range dbg.Watchpoints {
		if watchpoint.Addr == addr {
			dbg.Watchpoints[i].Type = watchType
			return
		}
	}

	dbg.Watchpoints = append(dbg.Watchpoints, Watchpoint{addr, watchType})
}

func (dbg *Debugger) RemoveWatchpoint(addr int64) bool {
	for i, watchpoint := range dbg.Watchpoints {
		if watchpoint.Addr == addr {
			dbg.Watchpoints = append(dbg.Watchpoints[:i], dbg.Watchpoints[i+1:]...)
			return true
		}
	}

	return false
}

// Reset reloads the original program, keeping breakpoints and watchpoints.
func (dbg *Debugger) Reset(mc *machine.Machine) {
	dbg.hits = nil
	dbg.Break.Store(false)
	mc.Load(dbg.Program)
}

func (dbg *Debugger) PrintSource(addr int64, count int) {
	out := dbg.output()

	if dbg.Source == nil {
		fmt.Fprintln(out, "No source file loaded")
		return
	}

	if dbg.SymTable == nil {
		fmt.Fprintln(out, "No symbol table loaded")
		return
	}

	offset, exists := dbg.SymTable.Symbols[addr]

	if !exists {
		fmt.Fprintf(out, "No instruction found at %d\n", addr)
		return
	}

	lines := make(map[int64]int64, len(dbg.SymTable.Symbols))
	for lineaddr, linebyte := range dbg.SymTable.Symbols {
		if prev, ok := lines[linebyte]; !ok || lineaddr < prev {
			lines[linebyte] = lineaddr
		}
	}

	if _, err := dbg.Source.Seek(offset, io.SeekStart); err != nil {
		fmt.Fprintln(out, err)
		return
	}

	scanner := bufio.NewScanner(dbg.Source)
	scanner.Split(bufio.ScanLines)

	for i := 0; i < count; i++ {
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()

		if lineaddr, ok := lines[offset]; ok {
			fmt.Fprintf(out, "%s[%6d]%s ", styleBold, lineaddr, styleReset)
		} else {
			fmt.Fprintf(out, "%s~~~~~~~~%s ", styleDim, styleReset)
		}

		fmt.Fprintln(out, line)

		offset += int64(len(line) + 1)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(out, err)
	}
}

// PrintMem dumps count cells starting at addr, four per row. Cells past the
// end of memory read as zero and are not allocated.
func (dbg *Debugger) PrintMem(mc *machine.MachineState, addr, count int64) {
	out := dbg.output()

	if addr < 0 {
		addr = 0
	}

	for i := addr; i < addr+count; i++ {
		if i == addr {
			fmt.Fprintf(out, "%s[%6d]%s ", styleBold, i, styleReset)
		} else if (i-addr)%4 == 0 {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%s[%6d]%s ", styleBold, i, styleReset)
		}

		var result int64
		if i < int64(len(mc.Memory)) {
			result = mc.Memory[i]
		}

		if result == 0 {
			fmt.Fprintf(out, "%s%12d%s ", styleDim, result, styleReset)
		} else {
			fmt.Fprintf(out, "%12d ", result)
		}
	}

	fmt.Fprintln(out)
}

// PrintDisassembly lists count statements starting at addr, marking the
// program counter.
func (dbg *Debugger) PrintDisassembly(mc *machine.MachineState, addr int64, count int) {
	out := dbg.output()
	labels := dbg.labels()

	for i := 0; i < count && addr < int64(len(mc.Memory)); i++ {
		line := assembler.Disassemble(mc.Memory, addr, labels)

		marker := "  "
		if addr == mc.Program {
			marker = "=>"
		}

		fmt.Fprintf(out, "%s %s[%6d]%s %s\n", marker, styleBold, addr, styleReset, line)

		addr += line.Size()
	}
}

// PrintLabels lists the symbol table labels by address.
func (dbg *Debugger) PrintLabels() {
	out := dbg.output()
	labels := dbg.labels()

	if len(labels) == 0 {
		fmt.Fprintln(out, "No labels loaded")
		return
	}

	addrs := make([]int64, 0, len(labels))
	for addr := range labels {
		addrs = append(addrs, addr)
	}

	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	for _, addr := range addrs {
		fmt.Fprintf(out, "%s[%6d]%s %s\n", styleBold, addr, styleReset, labels[addr])
	}
}

// PrintRegisters shows the machine registers and queue sizes.
func (dbg *Debugger) PrintRegisters(mc *machine.Machine) {
	out := dbg.output()

	fmt.Fprintf(out, "%sPC%s     %d\n", styleBold, styleReset, mc.State.Program)
	fmt.Fprintf(out, "%sRB%s     %d\n", styleBold, styleReset, mc.State.Relative)
	fmt.Fprintf(out, "%sSTATUS%s %s\n", styleBold, styleReset, mc.State.Status)
	fmt.Fprintf(out, "%sSTEPS%s  %d\n", styleBold, styleReset, mc.State.Steps)
	fmt.Fprintf(out, "%sINPUT%s  %d pending\n", styleBold, styleReset, mc.Pending())
	fmt.Fprintf(out, "%sOUTPUT%s %v\n", styleBold, styleReset, mc.Outputs())
}
