package flow

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// Structured interactive payload prefixes carried by list/button replies.
const (
	payloadServicePrefix = "service_"
	payloadDatePrefix    = "date_"
	payloadTimePrefix    = "time_"
	payloadConfirmYes    = "confirm_yes"
	payloadConfirmNo     = "confirm_no"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	datePattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	timePattern = regexp.MustCompile(`\b(\d{1,2})(?:[:h](\d{2})?)?\b`)
)

// normalize lowercases and strips accents so keyword tables match the many
// ways users type "amanhã" or "não".
func normalize(text string) string {
	return strings.ReplaceAll(slug.Make(text), "-", " ")
}

// matchesAny reports whether the normalized text contains any keyword.
// Keyword tables are data-driven so tests can enumerate trigger phrases.
func matchesAny(text string, keywords []string) bool {
	norm := " " + normalize(text) + " "
	for _, kw := range keywords {
		kw = normalize(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(norm, " "+kw+" ") {
			return true
		}
	}
	return false
}

func parseServicePayload(payload string) (int64, bool) {
	raw, ok := strings.CutPrefix(payload, payloadServicePrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseDatePayload(payload string) (time.Time, bool) {
	raw, ok := strings.CutPrefix(payload, payloadDatePrefix)
	if !ok {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func parseTimePayload(payload string) (string, bool) {
	raw, ok := strings.CutPrefix(payload, payloadTimePrefix)
	if !ok {
		return "", false
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return "", false
	}
	return t.Format(timeLayout), true
}

// parseDateText resolves free-text date input: "hoje", "amanhã", or
// DD/MM[/YYYY]. A year-less date already past rolls into the next year.
func parseDateText(text string, now time.Time, today, tomorrow []string) (time.Time, bool) {
	if matchesAny(text, today) {
		return dateOnly(now), true
	}
	if matchesAny(text, tomorrow) {
		return dateOnly(now.Add(24 * time.Hour)), true
	}

	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	year := now.UTC().Year()
	explicitYear := false
	if m[3] != "" {
		y, _ := strconv.Atoi(m[3])
		if y < 100 {
			y += 2000
		}
		year = y
		explicitYear = true
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != time.Month(month) {
		return time.Time{}, false
	}
	if !explicitYear && d.Before(dateOnly(now)) {
		d = d.AddDate(1, 0, 0)
	}
	return d, true
}

// parseTimeText resolves free-text time input: "14:30", "14h30", "14h", "14".
func parseTimeText(text string) (string, bool) {
	m := timePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}

	hour, _ := strconv.Atoi(m[1])
	if hour > 23 {
		return "", false
	}
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
		if minute > 59 {
			return "", false
		}
	}
	return time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC).Format(timeLayout), true
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
