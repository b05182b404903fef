package schedule

import (
	"time"

	"github.com/wolfman30/spa-desk/internal/timeparse"
)

// Grid is the fixed list of bookable start times for a day.
type Grid struct {
	first int
	last  int
	step  int
	slots []string
}

// NewGrid builds a grid from first to last start (inclusive), both given in
// minutes since midnight.
func NewGrid(first, last int, step time.Duration) Grid {
	stepMin := int(step / time.Minute)
	if stepMin <= 0 {
		stepMin = 30
	}
	g := Grid{first: first, last: last, step: stepMin}
	for m := first; m <= last; m += stepMin {
		g.slots = append(g.slots, timeparse.FormatClock(m))
	}
	return g
}

// DefaultGrid is the canonical 2:00 PM through 7:30 PM grid, 12 half-hour slots.
func DefaultGrid() Grid {
	return NewGrid(14*60, 19*60+30, 30*time.Minute)
}

// Slots returns a copy of the slot labels in grid order.
func (g Grid) Slots() []string {
	out := make([]string, len(g.slots))
	copy(out, g.slots)
	return out
}

// Len is the number of slots in the grid.
func (g Grid) Len() int {
	return len(g.slots)
}

// Contains reports whether minutes lies inside the grid's bounding window.
func (g Grid) Contains(minutes int) bool {
	return minutes >= g.first && minutes <= g.last
}

// Window returns the first and last slot labels.
func (g Grid) Window() (string, string) {
	return timeparse.FormatClock(g.first), timeparse.FormatClock(g.last)
}

func (g Grid) starts() []int {
	out := make([]int, 0, len(g.slots))
	for m := g.first; m <= g.last; m += g.step {
		out = append(out, m)
	}
	return out
}
