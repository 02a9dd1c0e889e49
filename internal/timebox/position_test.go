package timebox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:05", 545, false},
		{"9:05", 545, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"12:5", 0, true},
		{"+1:00", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadClock)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRange_EndOfDay(t *testing.T) {
	s, e, err := ParseRange("23:00", "24:00")
	assert.NoError(t, err)
	assert.Equal(t, 1380, s)
	assert.Equal(t, MinutesPerDay, e)

	_, _, err = ParseRange("10:00", "10:00")
	assert.Error(t, err)
	_, _, err = ParseRange("11:00", "10:00")
	assert.Error(t, err)
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00", FormatClock(0))
	assert.Equal(t, "09:05", FormatClock(545))
	assert.Equal(t, "24:00", FormatClock(MinutesPerDay))
	assert.Equal(t, "24:00", FormatClock(5000))
}

func TestLayout_Position(t *testing.T) {
	l := DefaultLayout()
	tests := []struct {
		name       string
		start, end string
		top        float64
		height     float64
	}{
		{"one hour", "09:00", "10:00", 720, 80},
		{"midnight start", "00:00", "01:00", 0, 80},
		{"short block is boosted", "09:00", "09:20", 720, 32},
		{"tiny block clamps to min", "09:00", "09:05", 720, 24},
		{"exactly four hours", "08:00", "12:00", 640, 320},
		{"long block is compressed", "08:00", "13:00", 640, 360},
		{"very long block clamps to max", "06:00", "18:00", 480, 480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := l.Position(tt.start, tt.end)
			assert.InDelta(t, tt.top, p.Top, 1e-6)
			assert.InDelta(t, tt.height, p.Height, 1e-6)
		})
	}
}

func TestLayout_PositionBounds(t *testing.T) {
	l := DefaultLayout()
	prevTop := -1.0
	for start := 0; start < MinutesPerDay-60; start += 37 {
		for _, d := range []int{1, 15, 29, 30, 90, 240, 241, 600} {
			end := start + d
			if end > MinutesPerDay {
				continue
			}
			p := l.Position(FormatClock(start), FormatClock(end))
			assert.GreaterOrEqual(t, p.Height, l.MinHeight)
			assert.LessOrEqual(t, p.Height, l.MaxHeight)
			assert.GreaterOrEqual(t, p.Top, 0.0)
		}
		top := l.Position(FormatClock(start), FormatClock(start+60)).Top
		assert.Greater(t, top, prevTop)
		prevTop = top
	}
}

func TestLayout_PositionFallback(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := NewLayout(80, 24, 480, zap.New(core))

	for _, in := range [][2]string{
		{"25:00", "26:00"},
		{"10:00", "09:00"},
		{"10:00", "10:00"},
		{"", "10:00"},
		{"9am", "10am"},
	} {
		assert.Equal(t, Position{Top: 0, Height: DefaultFallbackHeight}, l.Position(in[0], in[1]), in)
	}
	assert.Equal(t, 5, logs.Len())
}

func TestLayout_FallbackHeightIsConfigurable(t *testing.T) {
	l := NewLayout(80, 24, 480, nil)
	l.FallbackHeight = 100
	assert.Equal(t, Position{Top: 0, Height: 100}, l.Position("10:00", "09:00"))

	l.FallbackHeight = 0
	assert.Equal(t, Position{Top: 0, Height: DefaultFallbackHeight}, l.Position("10:00", "09:00"))
}

func TestLayout_GridHeight(t *testing.T) {
	assert.InDelta(t, 1920, DefaultLayout().GridHeight(), 1e-6)
	assert.InDelta(t, 2880, NewLayout(120, 24, 480, nil).GridHeight(), 1e-6)
}
