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
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lassandro/gointcode/pkg/machine"
)

type Result struct {
	Signal int64
	Phases []int64
}

// Permutations returns every ordering of values using Heap's algorithm.
func Permutations(values []int64) [][]int64 {
	perm := make([]int64, len(values))
	copy(perm, values)

	ordering := func() []int64 {
		p := make([]int64, len(perm))
		copy(p, perm)
		return p
	}

	result := [][]int64{ordering()}

	counters := make([]int, len(perm))

	for i := 1; i < len(perm); {
		if counters[i] < i {
			if i%2 == 0 {
				perm[0], perm[i] = perm[i], perm[0]
			} else {
				perm[counters[i]], perm[i] = perm[i], perm[counters[i]]
			}

			result = append(result, ordering())

			counters[i]++
			i = 1
		} else {
			counters[i] = 0
			i++
		}
	}

	return result
}

// Search runs a pipeline for every ordering of phases, at most workers at a
// time (unbounded when workers < 1), and returns the ordering producing the
// largest signal. The first failure cancels the remaining runs.
func Search(ctx context.Context, program []int64, phases []int64, feedback bool, workers int) (Result, error) {
	if len(phases) == 0 {
		return Result{}, ErrNoPhases
	}

	perms := Permutations(phases)
	signals := make([]int64, len(perms))

	prototype := new(machine.Machine)
	prototype.Load(program)

	g, gCtx := errgroup.WithContext(ctx)

	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, perm := range perms {
		i, perm := i, perm

		g.Go(func() error {
			signal, err := FromMachine(prototype, perm, feedback).Run(gCtx, 0)

			if err != nil {
				return fmt.Errorf("phases %v: %w", perm, err)
			}

			signals[i] = signal
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	best := 0
	for i, signal := range signals {
		if signal > signals[best] {
			best = i
		}
	}

	Log.WithFields(logrus.Fields{
		"orderings": len(perms),
		"phases":    perms[best],
		"signal":    signals[best],
	}).Debug("search finished")

	return Result{Signal: signals[best], Phases: perms[best]}, nil
}
