package timebox

import (
	"go.uber.org/zap"

	"lifelock-backend/internal/logging"
)

// DefaultFallbackHeight is the height of blocks whose times cannot be parsed.
const DefaultFallbackHeight = 60

const (
	shortBlockMinutes = 30
	shortBlockBoost   = 1.2
	longBlockMinutes  = 240
	longBlockFactor   = 0.5
)

// Position is a block's vertical placement on the day timeline, in pixels.
type Position struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Layout converts times to pixels on a fixed-height 24-hour grid.
type Layout struct {
	PixelsPerMinute float64
	MinHeight       float64
	MaxHeight       float64
	FallbackHeight  float64

	logger *zap.Logger
}

func DefaultLayout() Layout {
	return NewLayout(80, 24, 480, nil)
}

func NewLayout(pixelsPerHour, minHeight, maxHeight float64, logger *zap.Logger) Layout {
	if pixelsPerHour <= 0 {
		pixelsPerHour = 80
	}
	if maxHeight < minHeight {
		maxHeight = minHeight
	}
	return Layout{
		PixelsPerMinute: pixelsPerHour / 60,
		MinHeight:       minHeight,
		MaxHeight:       maxHeight,
		FallbackHeight:  DefaultFallbackHeight,
		logger:          logging.OrNop(logger),
	}
}

// Position places a block. Malformed or non-increasing times are logged and
// get the fixed fallback block at the top of the grid.
func (l Layout) Position(start, end string) Position {
	s, e, err := ParseRange(start, end)
	if err != nil {
		logging.OrNop(l.logger).Warn("invalid timebox range, using fallback position",
			zap.String("start", start), zap.String("end", end), zap.Error(err))
		h := l.FallbackHeight
		if h <= 0 {
			h = DefaultFallbackHeight
		}
		return Position{Top: 0, Height: h}
	}

	d := float64(e - s)
	height := d * l.PixelsPerMinute
	switch {
	case e-s < shortBlockMinutes:
		height *= shortBlockBoost
	case e-s > longBlockMinutes:
		height = longBlockMinutes*l.PixelsPerMinute + (d-longBlockMinutes)*l.PixelsPerMinute*longBlockFactor
	}
	if height < l.MinHeight {
		height = l.MinHeight
	}
	if height > l.MaxHeight {
		height = l.MaxHeight
	}

	return Position{
		Top:    float64(s) * l.PixelsPerMinute,
		Height: height,
	}
}

// GridHeight is the full 24-hour timeline height in pixels.
func (l Layout) GridHeight() float64 {
	return MinutesPerDay * l.PixelsPerMinute
}
