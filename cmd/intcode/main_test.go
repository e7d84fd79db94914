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
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/gointcode/pkg/debugger"
	"github.com/lassandro/gointcode/pkg/machine"
)

func TestWriteOutputs(t *testing.T) {
	mc, err := machine.New("104,72,104,105,104,10,104,1000,104,33,99")
	require.NoError(t, err)

	_, err = mc.Run()
	require.NoError(t, err)

	var out bytes.Buffer
	writeOutputs(&out, mc.Clone(), true)
	assert.Equal(t, "Hi\n1000\n!", out.String())

	out.Reset()
	writeOutputs(&out, mc, false)
	assert.Equal(t, "72\n105\n10\n1000\n33\n", out.String())

	_, ok := mc.Pop()
	assert.False(t, ok)
}

func TestInsertLine(t *testing.T) {
	mc, err := machine.New("3,0,3,1,3,2,99")
	require.NoError(t, err)

	require.NoError(t, insertLine(mc, "1,-2,3", false))
	assert.Equal(t, 3, mc.Pending())

	status, err := mc.Run()
	require.NoError(t, err)
	assert.Equal(t, machine.STATUS_DONE, status)
	assert.Equal(t, []int64{1, -2, 3}, mc.State.Memory[:3])

	assert.Error(t, insertLine(mc, "1,x", false))

	require.NoError(t, insertLine(mc, "ab", true))
	assert.Equal(t, 3, mc.Pending())
}

func TestParseAddr(t *testing.T) {
	dbg := &debugger.Debugger{}

	addr, err := parseAddr(dbg, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), addr)

	addr, err = parseAddr(dbg, "0x2a")
	require.NoError(t, err)
	assert.Equal(t, int64(42), addr)

	_, err = parseAddr(dbg, "loop")
	assert.Error(t, err)
}

func scriptedInput(lines ...string) func() (string, error) {
	return func() (string, error) {
		if len(lines) == 0 {
			return "", io.EOF
		}

		line := lines[0]
		lines = lines[1:]

		return line, nil
	}
}

func TestReadInput(t *testing.T) {
	log.SetOutput(io.Discard)

	mc, err := machine.New("3,0,4,0,99")
	require.NoError(t, err)

	status, err := mc.Run()
	require.NoError(t, err)
	require.Equal(t, machine.STATUS_WAIT, status)

	// A mistyped line is asked for again instead of ending the run
	require.NoError(t, readInput(scriptedInput("abc", "1,x", "42"), mc, false))
	assert.Equal(t, 1, mc.Pending())

	status, err = mc.Run()
	require.NoError(t, err)
	assert.Equal(t, machine.STATUS_DONE, status)
	assert.Equal(t, []int64{42}, mc.Outputs())

	mc, err = machine.New("3,0,99")
	require.NoError(t, err)

	_, err = mc.Run()
	require.NoError(t, err)

	assert.ErrorIs(t, readInput(scriptedInput("abc"), mc, false), io.EOF)
	assert.Equal(t, 0, mc.Pending())
}
