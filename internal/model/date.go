package model

import (
	"strconv"
	"strings"
	"time"
)

// twoDigitYearPivot splits two-digit years between centuries: 00-30 is
// 2000s, 31-99 is 1900s. The leaderboard predates 2000 for early entries.
const twoDigitYearPivot = 30

// ParseLeaderboardDate parses the M/D/YY or M/D/YYYY date strings that appear
// on the leaderboard. Unparseable input falls back to the Unix epoch rather
// than failing, matching the historical store contents.
func ParseLeaderboardDate(s string) time.Time {
	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return epoch
	}

	month, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	day, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	yearStr := strings.TrimSpace(parts[2])
	year, err3 := strconv.Atoi(yearStr)
	if err1 != nil || err2 != nil || err3 != nil {
		return epoch
	}

	if len(yearStr) == 2 {
		if year <= twoDigitYearPivot {
			year += 2000
		} else {
			year += 1900
		}
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return epoch
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
