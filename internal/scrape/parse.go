package scrape

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nolasoft/hoftrack/internal/model"
)

var (
	hoverBodyRe = regexp.MustCompile(`(?is)<tbody[^>]*class="[^"]*row-hover[^"]*"[^>]*>(.*?)</tbody>`)
	rowRe       = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>`)
	cellRe      = regexp.MustCompile(`(?is)<td[^>]*>(.*?)</td>`)
	brRe        = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagRe       = regexp.MustCompile(`<[^>]+>`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&#039;", "'",
	"&nbsp;", " ",
)

// ParseTable extracts leaderboard rows from the page HTML. It scopes to the
// row-hover tbody when present and falls back to scanning every table row.
// Malformed rows are skipped, not fatal. Rows come back sorted by participant
// number descending, newest champion first.
func ParseTable(html string) ([]model.RawEntry, error) {
	scope := html
	if m := hoverBodyRe.FindStringSubmatch(html); m != nil {
		scope = m[1]
	} else {
		zap.L().Warn("scrape: row-hover tbody not found, scanning all rows")
	}

	now := time.Now().UTC()
	var entries []model.RawEntry
	for _, row := range rowRe.FindAllStringSubmatch(scope, -1) {
		cells := cellRe.FindAllStringSubmatch(row[1], -1)
		if len(cells) < 3 {
			continue
		}

		num, err := strconv.Atoi(cellText(cells[0][1]))
		if err != nil {
			zap.L().Debug("scrape: skipping row with non-numeric number cell",
				zap.String("cell", cellText(cells[0][1])))
			continue
		}
		name := strings.ToUpper(cellText(cells[1][1]))
		if name == "" {
			continue
		}

		entries = append(entries, model.RawEntry{
			ParticipantNumber: num,
			Name:              name,
			Date:              cellText(cells[2][1]),
			ScrapedAt:         now,
		})
	}

	if len(entries) == 0 {
		return nil, eris.New("scrape: no table rows found in page")
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ParticipantNumber > entries[j].ParticipantNumber
	})
	zap.L().Info("scrape: table parsed", zap.Int("entries", len(entries)))
	return entries, nil
}

// cellText strips a table cell down to plain text: <br> runs become single
// spaces so multi-line name cells join into one string.
func cellText(inner string) string {
	s := brRe.ReplaceAllString(inner, " ")
	s = tagRe.ReplaceAllString(s, " ")
	s = entityReplacer.Replace(s)
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
