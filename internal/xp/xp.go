// Package xp turns completed timeboxes into experience points and levels.
package xp

import "math"

// basePoints per hour of completed work, by timebox category.
var basePoints = map[string]int{
	"deep-work":  60,
	"light-work": 30,
	"admin":      25,
	"wellness":   40,
	"morning":    35,
}

const defaultPoints = 20

// Award returns the XP for one timebox. Incomplete or empty blocks earn
// nothing; short blocks still earn a minimum of a quarter hour.
func Award(category string, minutes int, completed bool) int {
	if !completed || minutes <= 0 {
		return 0
	}
	perHour, ok := basePoints[category]
	if !ok {
		perHour = defaultPoints
	}
	if minutes < 15 {
		minutes = 15
	}
	// diminishing returns past three hours in one block
	effective := float64(minutes)
	if minutes > 180 {
		effective = 180 + float64(minutes-180)*0.5
	}
	return int(math.Round(float64(perHour) * effective / 60))
}

// LevelFor maps total XP to a level. Level n starts at 50*n*(n-1) XP, so
// each level needs 100 more XP than the previous one.
func LevelFor(total int) int {
	if total <= 0 {
		return 1
	}
	n := int((1 + math.Sqrt(1+float64(total)/12.5)) / 2)
	for threshold(n+1) <= total {
		n++
	}
	for n > 1 && threshold(n) > total {
		n--
	}
	return n
}

func threshold(level int) int {
	return 50 * level * (level - 1)
}

// Block is the minimal view of a timebox the summary needs.
type Block struct {
	Category  string
	Minutes   int
	Completed bool
}

type DaySummary struct {
	XP          int `json:"xp"`
	Level       int `json:"level"`
	NextLevelAt int `json:"nextLevelAt"`
	Completed   int `json:"completed"`
	Scheduled   int `json:"scheduled"`
}

// Summarize adds up one day. The level is computed from the day's XP plus
// carried, the XP earned before this day.
func Summarize(blocks []Block, carried int) DaySummary {
	var s DaySummary
	for _, b := range blocks {
		s.Scheduled++
		if b.Completed {
			s.Completed++
		}
		s.XP += Award(b.Category, b.Minutes, b.Completed)
	}
	s.Level = LevelFor(carried + s.XP)
	s.NextLevelAt = threshold(s.Level + 1)
	return s
}
