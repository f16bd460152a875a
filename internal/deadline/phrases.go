package deadline

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// phraseRule resolves one family of relative phrases. m holds the regexp
// submatches; now is the current time in the normalizer's location.
type phraseRule struct {
	name    string
	pattern *regexp.Regexp
	resolve func(m []string, now time.Time) (time.Time, bool)
}

const weekdayAlt = `(monday|tuesday|wednesday|thursday|friday|saturday|sunday)`

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var smallNumbers = map[string]int{
	"a": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
}

// phraseRules are evaluated in order; the first matching rule wins.
var phraseRules = []phraseRule{
	{
		name:    "end of today",
		pattern: regexp.MustCompile(`^(today|tonight|eod|end of (the )?day)$`),
		resolve: func(_ []string, now time.Time) (time.Time, bool) { return endOfDay(now), true },
	},
	{
		name:    "tomorrow",
		pattern: regexp.MustCompile(`^tomorrow$`),
		resolve: func(_ []string, now time.Time) (time.Time, bool) { return endOfDay(now.AddDate(0, 0, 1)), true },
	},
	{
		name:    "next week",
		pattern: regexp.MustCompile(`^next week$`),
		resolve: func(_ []string, now time.Time) (time.Time, bool) { return endOfDay(now.AddDate(0, 0, 7)), true },
	},
	{
		name:    "end of month",
		pattern: regexp.MustCompile(`^(end of (the )?month|eom)$`),
		resolve: func(_ []string, now time.Time) (time.Time, bool) {
			y, m, _ := now.Date()
			return endOfDay(time.Date(y, m+1, 0, 0, 0, 0, 0, now.Location())), true
		},
	},
	{
		name:    "this weekend",
		pattern: regexp.MustCompile(`^(this )?weekend$`),
		resolve: func(_ []string, now time.Time) (time.Time, bool) {
			return endOfDay(now.AddDate(0, 0, daysUntil(now.Weekday(), time.Saturday, true))), true
		},
	},
	{
		name:    "next weekday",
		pattern: regexp.MustCompile(`^next ` + weekdayAlt + `$`),
		resolve: func(m []string, now time.Time) (time.Time, bool) {
			return endOfDay(now.AddDate(0, 0, daysUntil(now.Weekday(), weekdays[m[1]], false))), true
		},
	},
	{
		name:    "by weekday",
		pattern: regexp.MustCompile(`^(?:by |on |this )?` + weekdayAlt + `( evening| night| morning)?$`),
		resolve: func(m []string, now time.Time) (time.Time, bool) {
			day := now.AddDate(0, 0, daysUntil(now.Weekday(), weekdays[m[1]], true))
			y, mo, d := day.Date()
			switch strings.TrimSpace(m[2]) {
			case "evening", "night":
				return time.Date(y, mo, d, 18, 0, 0, 0, now.Location()), true
			case "morning":
				return time.Date(y, mo, d, 9, 0, 0, 0, now.Location()), true
			}
			return endOfDay(day), true
		},
	},
	{
		name:    "within days",
		pattern: regexp.MustCompile(`^(?:within|in) (\d+|a|one|two|three|four|five|six|seven) days?$`),
		resolve: func(m []string, now time.Time) (time.Time, bool) {
			n, ok := smallNumbers[m[1]]
			if !ok {
				v, err := strconv.Atoi(m[1])
				if err != nil {
					return time.Time{}, false
				}
				n = v
			}
			return endOfDay(now.AddDate(0, 0, n)), true
		},
	},
	{
		name:    "next sprint",
		pattern: regexp.MustCompile(`^(in |by )?(the )?next sprint$`),
		resolve: func(_ []string, now time.Time) (time.Time, bool) { return endOfDay(now.AddDate(0, 0, 14)), true },
	},
	{
		name:    "before release",
		pattern: regexp.MustCompile(`^(before|by) (the )?(next )?release$`),
		resolve: func(_ []string, now time.Time) (time.Time, bool) { return endOfDay(now.AddDate(0, 0, 7)), true },
	},
}

// daysUntil counts days from one weekday to the next occurrence of target.
// When includeToday is false a match on the same day counts as a week away.
func daysUntil(from, target time.Weekday, includeToday bool) int {
	d := (int(target) - int(from) + 7) % 7
	if d == 0 && !includeToday {
		d = 7
	}
	return d
}

// ParsePhrase resolves a relative deadline phrase such as "tomorrow", "by
// friday evening" or "within two days", falling back to absolute date
// parsing. Results in the past are moved forward in whole weeks.
// Unrecognised phrases report ok=false.
func (n *Normalizer) ParsePhrase(phrase string) (time.Time, bool) {
	p := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	p = strings.TrimRight(p, ".!")
	if p == "" {
		return time.Time{}, false
	}
	now := n.today()

	t, ok := matchRules(p, now)
	if !ok && strings.HasPrefix(p, "by ") {
		t, ok = matchRules(strings.TrimPrefix(p, "by "), now)
	}
	if !ok {
		raw := strings.TrimSpace(phrase)
		t, ok = n.parseString(raw)
		if !ok && len(raw) > 3 && strings.EqualFold(raw[:3], "by ") {
			t, ok = n.parseString(raw[3:])
		}
	}
	if !ok {
		n.log.WithField("phrase", phrase).Info("unrecognised deadline phrase")
		return time.Time{}, false
	}
	return pushForward(t, now), true
}

func matchRules(p string, now time.Time) (time.Time, bool) {
	for _, r := range phraseRules {
		if m := r.pattern.FindStringSubmatch(p); m != nil {
			return r.resolve(m, now)
		}
	}
	return time.Time{}, false
}

func pushForward(t, now time.Time) time.Time {
	const week = 7 * 24 * time.Hour
	for t.Before(now) {
		weeks := int(now.Sub(t)/week) + 1
		t = t.AddDate(0, 0, 7*weeks)
	}
	return t
}
