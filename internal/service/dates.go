package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02/01/06",
	"02-01-06",
	time.RFC3339,
}

var spanishMonths = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June,
	"julio": time.July, "agosto": time.August, "septiembre": time.September,
	"setiembre": time.September, "octubre": time.October,
	"noviembre": time.November, "diciembre": time.December,
}

var longDate = regexp.MustCompile(`(?i)^(\d{1,2})\s+de\s+([a-záéíóú]+)\s+de\s+(\d{2,4})$`)

// ParseDate understands ISO dates, day-first numeric dates and the
// "15 de marzo de 2024" form. Anything else yields fallback.
func ParseDate(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return truncateDay(fallback)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return truncateDay(t)
		}
	}

	if m := longDate.FindStringSubmatch(raw); m != nil {
		month, ok := spanishMonths[strings.ToLower(m[2])]
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		if ok && day >= 1 && day <= 31 {
			return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		}
	}

	return truncateDay(fallback)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
