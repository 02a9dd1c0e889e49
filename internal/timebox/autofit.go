package timebox

import "errors"

var ErrNoFreeSlot = errors.New("no free slot")

// AutoFitOptions bounds the forward search.
type AutoFitOptions struct {
	Step        int // minutes per attempt
	MaxAttempts int
}

func DefaultAutoFitOptions() AutoFitOptions {
	return AutoFitOptions{Step: 15, MaxAttempts: 32}
}

// AutoFit shifts task forward in Step increments, keeping its duration, until
// it no longer overlaps any other task. The search stops at end of day or
// after MaxAttempts attempts and then returns ErrNoFreeSlot.
func AutoFit(tasks []Task, task Task, opts AutoFitOptions) (Task, error) {
	s, e, err := ParseRange(task.StartTime, task.EndTime)
	if err != nil {
		return Task{}, err
	}
	if opts.Step <= 0 {
		opts.Step = DefaultAutoFitOptions().Step
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultAutoFitOptions().MaxAttempts
	}

	d := e - s
	for i := 0; i <= opts.MaxAttempts; i++ {
		start := s + i*opts.Step
		end := start + d
		if end > MinutesPerDay {
			break
		}
		candidate := task
		candidate.StartTime = FormatClock(start)
		candidate.EndTime = FormatClock(end)
		if len(ConflictsWith(tasks, candidate)) == 0 {
			return candidate, nil
		}
	}
	return Task{}, ErrNoFreeSlot
}
