// Package extract turns raw leaderboard name text into structured fields.
// Two strategies exist: a deterministic pattern extractor and an LLM-backed
// extractor. The parser tries them in a fixed order per call.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nolasoft/hoftrack/internal/model"
)

// Fields is the extraction result for one raw name string.
type Fields struct {
	CleanName string `json:"clean_name"`
	model.Structured
}

// daysPerYear and daysPerMonth are the fixed calendar approximation used by
// the historical data. Not calendar-accurate; must stay exactly 365 and 30
// so recomputed values match rows already in the store.
const (
	daysPerYear  = 365
	daysPerMonth = 30
)

var (
	completionRe = regexp.MustCompile(`^(\d+)(ST|ND|RD|TH)\s+TIME$`)
	ageSuffixRe  = regexp.MustCompile(`\s(\d+\s(?:YEARS?|YRS?)(?:\s\d+\sMONTHS?)?(?:\s\d+\sDAYS?)?(?:\sOLD)?)$`)
	timeSuffixRe = regexp.MustCompile(`\s(\d+\sMINUTES?(?:\s\d+\sSECONDS?)?|\d+\sSECONDS?)$`)

	yearsRe   = regexp.MustCompile(`\b(\d+)\s(?:YEARS?|YRS?)\b`)
	monthsRe  = regexp.MustCompile(`\b(\d+)\sMONTHS?\b`)
	daysRe    = regexp.MustCompile(`\b(\d+)\sDAYS?\b`)
	minutesRe = regexp.MustCompile(`\b(\d+)\sMINUTES?\b`)
	secondsRe = regexp.MustCompile(`\b(\d+)\sSECONDS?\b`)

	spacesRe = regexp.MustCompile(`\s+`)
)

// Pattern extracts structured fields from a raw name string. Deterministic,
// total, side-effect free: unmatched input comes back as a trimmed clean
// name with every optional nil.
//
// Patterns are tried in priority order, first match wins:
//  1. completion ordinal: "PHILLIP YERO, 2ND TIME"
//  2. age suffix: "JILL SMITH 11 YEARS 5 MONTHS 21 DAYS"
//  3. elapsed-time suffix: "JOHN VALDESPINO 6 MINUTES 40 SECONDS"
func Pattern(raw string) Fields {
	cleaned := normalize(raw)

	if i := strings.Index(cleaned, ","); i >= 0 {
		namePart := strings.TrimSpace(cleaned[:i])
		note := strings.TrimSpace(cleaned[i+1:])
		if m := completionRe.FindStringSubmatch(note); m != nil {
			count, err := strconv.Atoi(m[1])
			if err == nil && count >= 1 {
				return Fields{
					CleanName: namePart,
					Structured: model.Structured{
						Notes:           model.StrPtr(note),
						CompletionCount: model.IntPtr(count),
					},
				}
			}
		}
		// Comma present but no recognized qualifier: whole string is the name.
		return Fields{CleanName: cleaned}
	}

	if m := ageSuffixRe.FindStringSubmatchIndex(cleaned); m != nil {
		note := cleaned[m[2]:m[3]]
		return Fields{
			CleanName: strings.TrimSpace(cleaned[:m[0]]),
			Structured: model.Structured{
				Notes:   model.StrPtr(note),
				AgeDays: ageToDays(note),
			},
		}
	}

	if m := timeSuffixRe.FindStringSubmatchIndex(cleaned); m != nil {
		note := cleaned[m[2]:m[3]]
		return Fields{
			CleanName: strings.TrimSpace(cleaned[:m[0]]),
			Structured: model.Structured{
				Notes:           model.StrPtr(note),
				ElapsedTimeSecs: timeToSeconds(note),
			},
		}
	}

	return Fields{CleanName: cleaned}
}

// normalize uppercases, collapses runs of whitespace, and tightens the
// spacing around commas so the patterns can assume single spaces.
func normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = spacesRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, " ,", ",")
	return s
}

// ageToDays converts an age fragment like "11 YEARS 5 MONTHS 21 DAYS" to
// total days under the fixed Y*365 + M*30 + D rule. Returns nil if no
// component yields a positive total.
func ageToDays(note string) *int {
	total := 0
	if m := yearsRe.FindStringSubmatch(note); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			total += v * daysPerYear
		}
	}
	if m := monthsRe.FindStringSubmatch(note); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			total += v * daysPerMonth
		}
	}
	if m := daysRe.FindStringSubmatch(note); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			total += v
		}
	}
	if total <= 0 {
		return nil
	}
	return model.IntPtr(total)
}

// timeToSeconds converts an elapsed-time fragment like "6 MINUTES 40 SECONDS"
// to total seconds under M*60 + S. Returns nil if the total is not positive.
func timeToSeconds(note string) *int {
	total := 0
	if m := minutesRe.FindStringSubmatch(note); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			total += v * 60
		}
	}
	if m := secondsRe.FindStringSubmatch(note); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			total += v
		}
	}
	if total <= 0 {
		return nil
	}
	return model.IntPtr(total)
}
