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

package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/gointcode/pkg/encoding"
	"github.com/lassandro/gointcode/pkg/machine"
	"github.com/lassandro/gointcode/pkg/pipeline"
)

const (
	chainProgram    = "3,15,3,16,1002,16,10,16,1,16,15,15,4,15,99,0,0"
	reverseProgram  = "3,23,3,24,1002,24,10,24,1002,23,-1,23,101,5,23,23,1,24,23,23,4,23,99,0,0"
	feedbackProgram = "3,26,1001,26,-4,26,3,27,1002,27,2,27,1,27,26,27,4,27,1001,28,-1,28,1005,28,6,99,0,0,5"
)

func decode(t *testing.T, text string) []int64 {
	t.Helper()

	program, err := encoding.DecodeProgram(text)
	require.NoError(t, err)

	return program
}

func TestRun(t *testing.T) {
	tests := []struct {
		Name     string
		Program  string
		Phases   []int64
		Feedback bool
		Input    int64
		Signal   int64
	}{
		{"Chain", chainProgram, []int64{4, 3, 2, 1, 0}, false, 0, 43210},
		{"Reverse Chain", reverseProgram, []int64{0, 1, 2, 3, 4}, false, 0, 54321},
		{"Feedback", feedbackProgram, []int64{9, 8, 7, 6, 5}, true, 0, 139629729},
		{"Single", "3,0,3,1,1,0,1,0,4,0,99", []int64{5}, false, 7, 12},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			pl := pipeline.New(decode(t, test.Program), test.Phases, test.Feedback)

			signal, err := pl.Run(context.Background(), test.Input)

			require.NoError(t, err)
			assert.Equal(t, test.Signal, signal)

			for _, mc := range pl.Machines {
				assert.Equal(t, machine.STATUS_DONE, mc.State.Status)
			}
		})
	}
}

func TestFromMachine(t *testing.T) {
	prototype, err := machine.New(chainProgram)
	require.NoError(t, err)

	want := append([]int64(nil), prototype.State.Memory...)

	pl := pipeline.FromMachine(prototype, []int64{4, 3, 2, 1, 0}, false)
	require.Len(t, pl.Machines, 5)

	for i, mc := range pl.Machines {
		assert.NotSame(t, prototype, mc)
		assert.Equal(t, 1, mc.Pending(), "machine %d", i)
	}

	signal, err := pl.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(43210), signal)

	// Running the clones leaves the prototype as loaded
	assert.Equal(t, want, prototype.State.Memory)
	assert.Equal(t, machine.STATUS_READY, prototype.State.Status)
	assert.Equal(t, 0, prototype.Pending())

	pl.Machines[0].State.Memory[0] = 99
	assert.NotEqual(t, int64(99), pl.Machines[1].State.Memory[0])
}

func TestRunFailure(t *testing.T) {
	t.Run("Deadlock", func(t *testing.T) {
		pl := pipeline.New(decode(t, "3,0,3,0,3,0,99"), []int64{1}, false)
		_, err := pl.Run(context.Background(), 0)
		assert.ErrorIs(t, err, pipeline.ErrDeadlock)
	})

	t.Run("Feedback Deadlock", func(t *testing.T) {
		pl := pipeline.New(decode(t, "3,0,3,0,3,0,99"), []int64{1, 2}, true)
		_, err := pl.Run(context.Background(), 0)
		assert.ErrorIs(t, err, pipeline.ErrDeadlock)
	})

	t.Run("No Signal", func(t *testing.T) {
		pl := pipeline.New(decode(t, "3,0,3,0,99"), []int64{1}, false)
		_, err := pl.Run(context.Background(), 0)
		assert.ErrorIs(t, err, pipeline.ErrNoSignal)
	})

	t.Run("No Phases", func(t *testing.T) {
		pl := pipeline.New(decode(t, "99"), nil, false)
		_, err := pl.Run(context.Background(), 0)
		assert.ErrorIs(t, err, pipeline.ErrNoPhases)
	})

	t.Run("Invalid Opcode", func(t *testing.T) {
		pl := pipeline.New(decode(t, "3,0,3,0,42"), []int64{1, 2}, false)
		_, err := pl.Run(context.Background(), 0)

		var opErr *machine.InvalidOpcodeError
		require.True(t, errors.As(err, &opErr))
		assert.Equal(t, int64(4), opErr.Addr)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		pl := pipeline.New(decode(t, "1105,1,0"), []int64{1}, false)
		_, err := pl.Run(ctx, 0)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPermutations(t *testing.T) {
	perms := pipeline.Permutations([]int64{1, 2, 3})

	assert.ElementsMatch(t, [][]int64{
		{1, 2, 3}, {1, 3, 2}, {2, 1, 3}, {2, 3, 1}, {3, 1, 2}, {3, 2, 1},
	}, perms)

	perms = pipeline.Permutations([]int64{0, 1, 2, 3, 4})
	require.Len(t, perms, 120)

	seen := make(map[[5]int64]bool)
	for _, perm := range perms {
		var key [5]int64
		copy(key[:], perm)
		seen[key] = true
	}
	assert.Len(t, seen, 120)

	assert.Equal(t, [][]int64{{}}, pipeline.Permutations(nil))
	assert.NotNil(t, pipeline.Permutations([]int64{})[0])
}

func TestSearch(t *testing.T) {
	tests := []struct {
		Name     string
		Program  string
		Phases   []int64
		Feedback bool
		Workers  int
		Want     pipeline.Result
	}{
		{
			Name:    "Chain",
			Program: chainProgram,
			Phases:  []int64{0, 1, 2, 3, 4},
			Workers: 4,
			Want:    pipeline.Result{Signal: 43210, Phases: []int64{4, 3, 2, 1, 0}},
		},
		{
			Name:    "Reverse Chain",
			Program: reverseProgram,
			Phases:  []int64{4, 3, 2, 1, 0},
			Workers: 1,
			Want:    pipeline.Result{Signal: 54321, Phases: []int64{0, 1, 2, 3, 4}},
		},
		{
			Name:     "Feedback",
			Program:  feedbackProgram,
			Phases:   []int64{5, 6, 7, 8, 9},
			Feedback: true,
			Want:     pipeline.Result{Signal: 139629729, Phases: []int64{9, 8, 7, 6, 5}},
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			result, err := pipeline.Search(
				context.Background(),
				decode(t, test.Program),
				test.Phases,
				test.Feedback,
				test.Workers,
			)

			require.NoError(t, err)
			assert.Equal(t, test.Want, result)
		})
	}
}

func TestSearchFailure(t *testing.T) {
	_, err := pipeline.Search(
		context.Background(), decode(t, "3,0,3,0,3,0,99"), []int64{0, 1}, false, 2,
	)
	assert.ErrorIs(t, err, pipeline.ErrDeadlock)

	_, err = pipeline.Search(context.Background(), decode(t, "99"), nil, false, 2)
	assert.ErrorIs(t, err, pipeline.ErrNoPhases)
}
