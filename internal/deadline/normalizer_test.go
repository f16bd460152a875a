package deadline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"meeting-insights-go/internal/logger"
)

// Wednesday 14 October 2026, 10:00 UTC.
var fixedNow = time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(Config{
		WindowDays: 14,
		Location:   time.UTC,
		Now:        func() time.Time { return fixedNow },
	}, logger.Discard().Entry)
}

func day(m time.Month, d int) time.Time {
	return time.Date(2026, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer()
	fallback := fixedNow.AddDate(0, 0, 7)
	inWindow := time.Date(2026, time.October, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  any
		want time.Time
	}{
		{"absent", nil, fallback},
		{"empty", "   ", fallback},
		{"garbage", "not a date", fallback},
		{"day first five days out", "19/10/2026", day(time.October, 19)},
		{"day first dashes", "19-10-2026", day(time.October, 19)},
		{"two digit year", "19/10/26", day(time.October, 19)},
		{"today", "14/10/2026", time.Date(2026, time.October, 14, 23, 59, 59, 0, time.UTC)},
		{"earlier today", "2026-10-14 08:00", time.Date(2026, time.October, 14, 23, 59, 59, 0, time.UTC)},
		{"later today", "2026-10-14 15:30", time.Date(2026, time.October, 14, 15, 30, 0, 0, time.UTC)},
		{"yesterday", "13/10/2026", fallback},
		{"last day of window", "28/10/2026", day(time.October, 28)},
		{"past window", "29/10/2026", fallback},
		{"twenty days out", "03/11/2026", fallback},
		{"overflowing date", "31/02/2026", fallback},
		{"iso date", "2026-10-20", day(time.October, 20)},
		{"epoch millis number", inWindow.UnixMilli(), inWindow},
		{"epoch millis float", float64(inWindow.UnixMilli()), inWindow},
		{"epoch millis text", "1792497600000", time.UnixMilli(1792497600000).UTC()},
		{"time value", inWindow, inWindow},
		{"zero time", time.Time{}, fallback},
		{"unsupported type", []string{"x"}, fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.raw, fallback)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestNormalize_EpochTextFixture(t *testing.T) {
	// 1792497600000 is 2026-10-20T12:00:00Z.
	assert.Equal(t, time.Date(2026, time.October, 20, 12, 0, 0, 0, time.UTC), time.UnixMilli(1792497600000).UTC())
}

func TestFallback(t *testing.T) {
	n := newTestNormalizer()
	assert.Equal(t, fixedNow.AddDate(0, 0, 7), n.Fallback(0))
	assert.Equal(t, fixedNow.AddDate(0, 0, 14), n.Fallback(1))
	assert.Equal(t, fixedNow.AddDate(0, 0, 14), n.Fallback(9))
}

func TestFallbackIsAlwaysAccepted(t *testing.T) {
	n := newTestNormalizer()
	for i := 0; i < 4; i++ {
		fb := n.Fallback(i)
		assert.True(t, n.inWindow(fb))
	}
}

func TestNewNormalizer_Defaults(t *testing.T) {
	n := NewNormalizer(Config{}, logger.Discard().Entry)
	assert.Equal(t, DefaultWindowDays, n.windowDays)
	assert.Equal(t, time.UTC, n.loc)
	assert.NotNil(t, n.now)
}
