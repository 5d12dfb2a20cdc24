package scheduler

import "github.com/specialistvlad/burstflow/internal/task"

// fifo is an unbounded slice-backed queue. Callers hold the owning lock.
type fifo struct {
	items []task.Task
	head  int
}

func (f *fifo) push(t task.Task) {
	f.items = append(f.items, t)
}

func (f *fifo) pop() (task.Task, bool) {
	if f.head == len(f.items) {
		return task.Task{}, false
	}
	t := f.items[f.head]
	f.head++
	if f.head == len(f.items) {
		f.items = f.items[:0]
		f.head = 0
	} else if f.head > 64 && f.head*2 > len(f.items) {
		n := copy(f.items, f.items[f.head:])
		f.items = f.items[:n]
		f.head = 0
	}
	return t, true
}

func (f *fifo) len() int {
	return len(f.items) - f.head
}

func (f *fifo) reset() int {
	n := f.len()
	f.items = f.items[:0]
	f.head = 0
	return n
}
