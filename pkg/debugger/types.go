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
	"io"
	"sync/atomic"

	"github.com/lassandro/gointcode/pkg/assembler"
	"github.com/lassandro/gointcode/pkg/machine"
)

type WatchpointType uint

const (
	ReadWatch WatchpointType = 1 << iota
	WriteWatch
	ReadWriteWatch = ReadWatch | WriteWatch
)

type Watchpoint struct {
	Addr int64
	Type WatchpointType
}

type Breakpoint struct {
	Addr int64
}

// WatchHit records a watched access made by the last instruction.
type WatchHit struct {
	Watchpoint Watchpoint
	Access     WatchpointType
	Program    int64
}

type Debugger struct {
	// Set to stop before the next instruction. Safe to set from a signal
	// handler goroutine.
	Break atomic.Bool

	Breakpoints []Breakpoint
	Watchpoints []Watchpoint

	// Program the machine was loaded with, used to reset it
	Program []int64

	Source   io.ReadSeeker
	SymTable *assembler.SymTable
	Output   io.Writer

	HandleBreak func(*Debugger, *machine.Machine)
	HandleWatch func(WatchHit, *Debugger, *machine.Machine)

	hits []WatchHit
}
