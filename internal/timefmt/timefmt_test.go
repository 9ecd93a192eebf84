package timefmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		ms      int64
		h, m, s int64
	}{
		{"zero", 0, 0, 0, 0},
		{"sub-second rounds down", 999, 0, 0, 0},
		{"one second", 1000, 0, 0, 1},
		{"ninety seconds", 90_000, 0, 1, 30},
		{"one hour", 3_600_000, 1, 0, 0},
		{"mixed", 3_725_000, 1, 2, 5},
		{"negative uses absolute value", -90_000, 0, 1, 30},
		{"over a day keeps counting hours", 90_000_000, 25, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m, s := Split(tt.ms)
			assert.Equal(t, tt.h, h)
			assert.Equal(t, tt.m, m)
			assert.Equal(t, tt.s, s)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "00:00:00", Format(0))
	assert.Equal(t, "00:01:30", Format(90_000))
	assert.Equal(t, "01:02:05", Format(3_725_000))
	assert.Equal(t, "-00:00:00", Format(-500))
	assert.Equal(t, "-00:01:30", Format(-90_000))
}

func TestFormatHM(t *testing.T) {
	assert.Equal(t, "00:00", FormatHM(0))
	assert.Equal(t, "10:45", FormatHM(38_700_000))
	assert.Equal(t, "-00:01", FormatHM(-90_000))
}
