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

package machine

// queue is an unbounded FIFO. Popped slots are reclaimed once the queue
// drains or the dead prefix outgrows the live values.
type queue struct {
	values []int64
	head   int
}

func (q *queue) push(value int64) {
	q.values = append(q.values, value)
}

func (q *queue) pop() (int64, bool) {
	if q.head == len(q.values) {
		return 0, false
	}

	value := q.values[q.head]
	q.head++

	if q.head == len(q.values) {
		q.values = q.values[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.values) {
		n := copy(q.values, q.values[q.head:])
		q.values = q.values[:n]
		q.head = 0
	}

	return value, true
}

func (q *queue) peek() (int64, bool) {
	if q.head == len(q.values) {
		return 0, false
	}

	return q.values[q.head], true
}

func (q *queue) len() int {
	return len(q.values) - q.head
}

func (q *queue) snapshot() []int64 {
	result := make([]int64, q.len())
	copy(result, q.values[q.head:])
	return result
}

func (q *queue) clone() queue {
	return queue{values: q.snapshot()}
}

func (q *queue) reset() {
	q.values = nil
	q.head = 0
}
