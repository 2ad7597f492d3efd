// AngelaMos | 2026
// entity_test.go

package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func day(d int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func TestOverlaps(t *testing.T) {
	p := &Payment{StartDate: day(10), EndDate: day(20)}

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"fully inside", day(12), day(18), true},
		{"fully contains", day(5), day(25), true},
		{"overlaps left edge", day(5), day(10), true},
		{"overlaps right edge", day(20), day(25), true},
		{"single shared day", day(20), day(20), true},
		{"entirely before", day(1), day(9), false},
		{"entirely after", day(21), day(30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, p.Overlaps(tt.start, tt.end))
		})
	}
}

func TestOverlapsIsSymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		aStart := day(rapid.IntRange(0, 60).Draw(t, "aStart"))
		aEnd := aStart.AddDate(0, 0, rapid.IntRange(0, 60).Draw(t, "aLen"))
		bStart := day(rapid.IntRange(0, 60).Draw(t, "bStart"))
		bEnd := bStart.AddDate(0, 0, rapid.IntRange(0, 60).Draw(t, "bLen"))

		a := &Payment{StartDate: aStart, EndDate: aEnd}
		b := &Payment{StartDate: bStart, EndDate: bEnd}

		require.Equal(t, a.Overlaps(bStart, bEnd), b.Overlaps(aStart, aEnd))
	})
}
