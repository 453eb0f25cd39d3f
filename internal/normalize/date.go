// Package normalize converts the raw, irregular date and time text found on
// neighbourhood listing sites into canonical forms. Date resolution is an
// ordered rule list; the first matching rule wins and an input no rule can
// resolve is reported as a failure, never guessed past the season fallback.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"
)

// reiwaOffset converts a 令和 (Reiwa) year to a Gregorian year. 令和1 = 2019.
const reiwaOffset = 2018

var (
	reiwaRe    = regexp.MustCompile(`令和(\d{1,2})年(\d{1,2})月(\d{1,2})日?`)
	fullDateRe = regexp.MustCompile(`(\d{4})[年/\-](\d{1,2})[月/\-](\d{1,2})日?`)
	monthDayRe = regexp.MustCompile(`(\d{1,2})[月/](\d{1,2})日?`)

	timeRangeRe = regexp.MustCompile(`(\d{1,2})[時:：](\d{2})?分?\s*[~～〜\-ー−]\s*(\d{1,2})[時:：]?(\d{2})?分?`)
)

// seasonFallbacks maps seasonal words to a mid-season month/day. These are
// deliberately lossy guesses for listings that announce e.g. a summer
// festival without a date; the result carries no confidence signal and is
// only consulted when no digit pattern matched anywhere in the text.
var seasonFallbacks = []struct {
	words []string
	month time.Month
	day   int
}{
	{[]string{"夏", "サマー"}, time.July, 15},
	{[]string{"春", "スプリング"}, time.April, 15},
	{[]string{"秋", "オータム"}, time.October, 15},
	{[]string{"冬", "ウィンター"}, time.December, 15},
}

// Date resolves raw date text to canonical YYYY-MM-DD form. Rules, in order:
// Reiwa era dates, full year-month-day in any common separator style, a
// month-day pair assumed to be in now's year, then the season fallback.
// Full-width digits are folded to ASCII before the digit rules run; the
// season words are matched against the text as written, since narrowing
// rewrites katakana to its half-width form. The second return is false when
// no rule resolves the text to a valid calendar date.
func Date(text string, now time.Time) (string, bool) {
	if text == "" {
		return "", false
	}
	folded := width.Narrow.String(text)

	if m := reiwaRe.FindStringSubmatch(folded); m != nil {
		year := reiwaOffset + atoi(m[1])
		return ymd(year, atoi(m[2]), atoi(m[3]))
	}

	if m := fullDateRe.FindStringSubmatch(folded); m != nil {
		return ymd(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}

	if m := monthDayRe.FindStringSubmatch(folded); m != nil {
		return ymd(now.Year(), atoi(m[1]), atoi(m[2]))
	}

	for _, season := range seasonFallbacks {
		for _, w := range season.words {
			if strings.Contains(text, w) {
				return ymd(now.Year(), int(season.month), season.day)
			}
		}
	}

	return "", false
}

// TimeRange extracts a best-effort HH:MM-HH:MM display range from raw text.
// It accepts 10:00-16:00, 10時〜16時 and mixed forms. The second return is
// false when no range is present; callers substitute a display sentinel.
func TimeRange(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	text = width.Narrow.String(text)

	m := timeRangeRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}

	startH, endH := atoi(m[1]), atoi(m[3])
	if startH > 23 || endH > 23 {
		return "", false
	}

	startM, endM := m[2], m[4]
	if startM == "" {
		startM = "00"
	}
	if endM == "" {
		endM = "00"
	}
	return fmt.Sprintf("%02d:%s-%02d:%s", startH, startM, endH, endM), true
}

// ymd validates the components as a real calendar date and formats them.
// time.Date normalizes overflow (Feb 30 becomes Mar 2), so the round trip
// detects impossible dates.
func ymd(year, month, day int) (string, bool) {
	if year < 2000 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
