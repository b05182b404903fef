package schedule

// interval is a half-open [start, end) span in minutes since midnight.
type interval struct {
	start int
	end   int
}

func occupied(start, duration int) interval {
	return interval{start: start, end: start + duration}
}

// conflicts reports whether a and b overlap, or sit closer than gap minutes
// apart on either side.
func conflicts(a, b interval, gap int) bool {
	if a.start < b.end && b.start < a.end {
		return true
	}
	// new start measured from existing end, and existing start from new end
	afterGap := a.start - b.end
	beforeGap := b.start - a.end
	return (afterGap >= 0 && afterGap < gap) || (beforeGap >= 0 && beforeGap < gap)
}

// Conflicts reports whether a booking starting at slotStart clashes with one
// starting at bookedStart, both lasting duration minutes and needing gap
// minutes of clearance between them.
func Conflicts(slotStart, bookedStart, duration, gap int) bool {
	return conflicts(occupied(slotStart, duration), occupied(bookedStart, duration), gap)
}
