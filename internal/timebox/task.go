// Package timebox schedules a day as a list of time-blocked tasks: it maps
// blocks onto a 24-hour timeline, detects overlaps, finds free gaps and
// persists the list per day.
package timebox

import (
	"fmt"
	"time"
)

type Category string

const (
	CategoryDeepWork  Category = "deep-work"
	CategoryLightWork Category = "light-work"
	CategoryAdmin     Category = "admin"
	CategoryWellness  Category = "wellness"
	CategoryMorning   Category = "morning"
)

var Categories = []Category{
	CategoryDeepWork,
	CategoryLightWork,
	CategoryAdmin,
	CategoryWellness,
	CategoryMorning,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

var categoryColors = map[Category]string{
	CategoryDeepWork:  "#3b82f6",
	CategoryLightWork: "#22c55e",
	CategoryAdmin:     "#a855f7",
	CategoryWellness:  "#f97316",
	CategoryMorning:   "#eab308",
}

// CategoryColor is a presentation lookup; colors are never stored.
func CategoryColor(c Category) string {
	if color, ok := categoryColors[c]; ok {
		return color
	}
	return "#6b7280"
}

// Task is one timebox. Duration is derived from the times and never stored.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	StartTime   string   `json:"startTime"`
	EndTime     string   `json:"endTime"`
	Category    Category `json:"category"`
	Completed   bool     `json:"completed"`
	Description string   `json:"description,omitempty"`
}

// Duration in minutes, or 0 when the times are malformed.
func (t Task) Duration() int {
	s, e, err := ParseRange(t.StartTime, t.EndTime)
	if err != nil {
		return 0
	}
	return e - s
}

// span returns the task's minute interval; ok is false for malformed tasks.
func (t Task) span() (start, end int, ok bool) {
	s, e, err := ParseRange(t.StartTime, t.EndTime)
	if err != nil {
		return 0, 0, false
	}
	return s, e, true
}

const dateLayout = "2006-01-02"

// DayKey identifies one stored task list.
type DayKey struct {
	UserID int
	Date   string
}

func NewDayKey(userID int, date string) (DayKey, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return DayKey{}, fmt.Errorf("date must be yyyy-MM-dd, got %q", date)
	}
	return DayKey{UserID: userID, Date: date}, nil
}

// String is the storage key, "lifelock-<yyyy-MM-dd>-timeline" for the
// anonymous user.
func (k DayKey) String() string {
	if k.UserID == 0 {
		return "lifelock-" + k.Date + "-timeline"
	}
	return fmt.Sprintf("lifelock-u%d-%s-timeline", k.UserID, k.Date)
}
