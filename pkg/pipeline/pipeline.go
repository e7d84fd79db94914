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

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lassandro/gointcode/pkg/machine"
)

var (
	ErrDeadlock = errors.New("every machine is waiting for input")
	ErrNoSignal = errors.New("pipeline produced no output")
	ErrNoPhases = errors.New("no phases given")
)

// Log receives pipeline diagnostics. Callers replace it to route them.
var Log logrus.FieldLogger = logrus.StandardLogger()

// Pipeline chains machines so that each one's output is the next one's
// input. With Feedback set the last machine feeds the first.
type Pipeline struct {
	Machines []*machine.Machine
	Phases   []int64
	Feedback bool
}

// New loads program into one machine per phase and seeds each with its
// phase value.
func New(program []int64, phases []int64, feedback bool) *Pipeline {
	prototype := new(machine.Machine)
	prototype.Load(program)

	return FromMachine(prototype, phases, feedback)
}

// FromMachine clones prototype once per phase. The prototype is left
// untouched and may be shared between goroutines building pipelines, as
// long as none of them runs it.
func FromMachine(prototype *machine.Machine, phases []int64, feedback bool) *Pipeline {
	pl := &Pipeline{
		Machines: make([]*machine.Machine, len(phases)),
		Phases:   append([]int64(nil), phases...),
		Feedback: feedback,
	}

	for i, phase := range phases {
		pl.Machines[i] = prototype.Clone().Insert(phase)
	}

	return pl
}

func (pl *Pipeline) forward(i int, mc *machine.Machine) (last int64, emitted bool) {
	final := i == len(pl.Machines)-1

	for value, ok := mc.Pop(); ok; value, ok = mc.Pop() {
		last, emitted = value, true

		if !final {
			pl.Machines[i+1].Insert(value)
		} else if pl.Feedback {
			pl.Machines[0].Insert(value)
		}
	}

	if !final {
		emitted = false
	}

	return last, emitted
}

// Run inserts signal into the first machine and drives every machine in
// turn until all have halted. It returns the last value emitted by the final
// machine.
func (pl *Pipeline) Run(ctx context.Context, signal int64) (int64, error) {
	if len(pl.Machines) == 0 {
		return 0, ErrNoPhases
	}

	pl.Machines[0].Insert(signal)

	var result int64
	var found bool

	for round := 1; ; round++ {
		progressed := false
		done := 0

		for i, mc := range pl.Machines {
			switch mc.State.Status {
			case machine.STATUS_DONE:
				done++
				continue

			case machine.STATUS_WAIT:
				if mc.Pending() == 0 {
					continue
				}
			}

			status, err := mc.RunContext(ctx)

			if err != nil {
				return 0, fmt.Errorf("machine %d: %w", i, err)
			}

			progressed = true

			if status == machine.STATUS_DONE {
				done++
			}

			if value, ok := pl.forward(i, mc); ok {
				result, found = value, true
			}

			Log.WithFields(logrus.Fields{
				"round":   round,
				"machine": i,
				"phase":   pl.Phases[i],
				"status":  status,
				"steps":   mc.State.Steps,
			}).Debug("machine yielded")
		}

		if done == len(pl.Machines) {
			break
		}

		if !progressed {
			return 0, ErrDeadlock
		}
	}

	if !found {
		return 0, ErrNoSignal
	}

	return result, nil
}
