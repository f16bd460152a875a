package deadline

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/sirupsen/logrus"
)

const DefaultWindowDays = 14

var (
	dayFirst   = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2}|\d{4})$`)
	epochMilli = regexp.MustCompile(`^-?\d{12,}$`)
)

type Config struct {
	// WindowDays bounds accepted deadlines to [today, today+WindowDays].
	WindowDays int
	Location   *time.Location
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// Normalizer turns raw deadline values into concrete timestamps.
type Normalizer struct {
	windowDays int
	loc        *time.Location
	now        func() time.Time
	log        *logrus.Entry
}

func NewNormalizer(cfg Config, log *logrus.Entry) *Normalizer {
	n := &Normalizer{
		windowDays: cfg.WindowDays,
		loc:        cfg.Location,
		now:        cfg.Now,
		log:        log,
	}
	if n.windowDays <= 0 {
		n.windowDays = DefaultWindowDays
	}
	if n.loc == nil {
		n.loc = time.UTC
	}
	if n.now == nil {
		n.now = time.Now
	}
	return n
}

func (n *Normalizer) today() time.Time {
	return n.now().In(n.loc)
}

// Fallback is the default deadline for the i-th task of a record: one week
// out for the first task, two weeks for every later one.
func (n *Normalizer) Fallback(i int) time.Time {
	weeks := i + 1
	if weeks > 2 {
		weeks = 2
	}
	if weeks < 1 {
		weeks = 1
	}
	return n.today().AddDate(0, 0, 7*weeks)
}

// Normalize resolves raw into a timestamp inside the acceptance window.
// Absent, unparseable and out-of-window values yield fallback. A deadline
// earlier today is moved to the end of today. raw may be a string, an
// epoch-milliseconds number, or a time.Time.
func (n *Normalizer) Normalize(raw any, fallback time.Time) time.Time {
	t, ok := n.parse(raw)
	if !ok {
		return fallback
	}
	if !n.inWindow(t) {
		n.log.WithFields(logrus.Fields{"deadline": t.Format(time.RFC3339), "window_days": n.windowDays}).
			Debug("deadline outside window, using fallback")
		return fallback
	}
	if now := n.today(); t.Before(now) {
		return endOfDay(now)
	}
	return t
}

func (n *Normalizer) parse(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case string:
		return n.parseString(v)
	case json.Number:
		if ms, err := v.Int64(); err == nil {
			return time.UnixMilli(ms).In(n.loc), true
		}
		if f, err := v.Float64(); err == nil {
			return time.UnixMilli(int64(f)).In(n.loc), true
		}
		return time.Time{}, false
	case int:
		return time.UnixMilli(int64(v)).In(n.loc), true
	case int64:
		return time.UnixMilli(v).In(n.loc), true
	case float64:
		return time.UnixMilli(int64(v)).In(n.loc), true
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	default:
		return time.Time{}, false
	}
}

func (n *Normalizer) parseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if m := dayFirst.FindStringSubmatch(s); m != nil {
		return n.dayMonthYear(m[1], m[2], m[3])
	}
	if epochMilli.MatchString(s) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).In(n.loc), true
	}
	t, err := dateparse.ParseIn(s, n.loc)
	if err != nil {
		n.log.WithField("deadline", s).Debug("unparseable deadline")
		return time.Time{}, false
	}
	return t, true
}

// dayMonthYear builds a date from day-first parts. Two-digit years are
// taken as 20xx. Overflowing dates such as 31/02 are rejected.
func (n *Normalizer) dayMonthYear(ds, ms, ys string) (time.Time, bool) {
	if len(ys) == 2 {
		ys = "20" + ys
	}
	d, _ := strconv.Atoi(ds)
	m, _ := strconv.Atoi(ms)
	y, _ := strconv.Atoi(ys)
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, n.loc)
	if t.Day() != d || int(t.Month()) != m || t.Year() != y {
		return time.Time{}, false
	}
	return t, true
}

func (n *Normalizer) inWindow(t time.Time) bool {
	start := startOfDay(n.today())
	end := start.AddDate(0, 0, n.windowDays+1)
	return !t.Before(start) && t.Before(end)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
