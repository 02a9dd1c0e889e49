package timebox

// HourlyDensity sums, per hour of the day, the scheduled minutes falling in
// that hour. Malformed tasks are skipped.
func HourlyDensity(tasks []Task) [24]int {
	var density [24]int
	for _, t := range tasks {
		s, e, ok := t.span()
		if !ok {
			continue
		}
		for h := s / 60; h < 24 && h*60 < e; h++ {
			lo, hi := max(s, h*60), min(e, (h+1)*60)
			if hi > lo {
				density[h] += hi - lo
			}
		}
	}
	return density
}

// Window limits a gap search to part of the day, in minutes since midnight.
type Window struct {
	Start int
	End   int
}

var FullDay = Window{Start: 0, End: MinutesPerDay}

// NewWindow parses a window; empty strings default to the full day.
func NewWindow(start, end string) (Window, error) {
	w := FullDay
	if start == "" && end == "" {
		return w, nil
	}
	if start != "" {
		s, err := ParseClock(start)
		if err != nil {
			return Window{}, err
		}
		w.Start = s
	}
	if end != "" {
		e, err := parseEnd(end)
		if err != nil {
			return Window{}, err
		}
		w.End = e
	}
	if w.End <= w.Start {
		return Window{}, ErrBadClock
	}
	return w, nil
}

// Gap is a contiguous free interval.
type Gap struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Minutes   int    `json:"minutes"`

	start, end int
}

// FindGaps scans the window minute by minute and returns free intervals of
// at least minMinutes, earliest first.
func FindGaps(tasks []Task, minMinutes int, w Window) []Gap {
	if w.Start < 0 {
		w.Start = 0
	}
	if w.End > MinutesPerDay {
		w.End = MinutesPerDay
	}
	if minMinutes < 1 {
		minMinutes = 1
	}

	var busy [MinutesPerDay]bool
	for _, t := range tasks {
		s, e, ok := t.span()
		if !ok {
			continue
		}
		for m := s; m < e; m++ {
			busy[m] = true
		}
	}

	var gaps []Gap
	free := -1
	for m := w.Start; m <= w.End; m++ {
		if m < w.End && !busy[m] {
			if free < 0 {
				free = m
			}
			continue
		}
		if free >= 0 && m-free >= minMinutes {
			gaps = append(gaps, newGap(free, m))
		}
		free = -1
	}
	return gaps
}

func newGap(start, end int) Gap {
	return Gap{
		StartTime: FormatClock(start),
		EndTime:   FormatClock(end),
		Minutes:   end - start,
		start:     start,
		end:       end,
	}
}

// Pending is an unscheduled task waiting for a slot.
type Pending struct {
	Title    string   `json:"title"`
	Minutes  int      `json:"minutes"`
	Category Category `json:"category"`
}

// Suggest places pending tasks, in order, at the start of the earliest gap
// that fits each one. Placed suggestions occupy their slot for later
// pending tasks. Tasks that fit nowhere are returned as unplaced.
func Suggest(tasks []Task, pending []Pending, w Window) (placed []Task, unplaced []Pending) {
	working := append([]Task(nil), tasks...)
	for _, p := range pending {
		if p.Minutes <= 0 {
			unplaced = append(unplaced, p)
			continue
		}
		gaps := FindGaps(working, p.Minutes, w)
		if len(gaps) == 0 {
			unplaced = append(unplaced, p)
			continue
		}
		g := gaps[0]
		t := Task{
			Title:     p.Title,
			StartTime: FormatClock(g.start),
			EndTime:   FormatClock(g.start + p.Minutes),
			Category:  p.Category,
		}
		placed = append(placed, t)
		working = append(working, t)
	}
	return placed, unplaced
}
