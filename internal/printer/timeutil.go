package printer

import (
	"fmt"
	"time"
)

// timeUnits, largest first. Anything under a minute counts in seconds,
// anything past a day counts in days.
var timeUnits = []struct {
	span time.Duration
	name string
}{
	{span: 24 * time.Hour, name: "day"},
	{span: time.Hour, name: "hour"},
	{span: time.Minute, name: "minute"},
	{span: time.Second, name: "second"},
}

// TimeAgo renders how far in the past a timestamp lies, in UTC.
// Examples: "5 seconds ago (UTC)", "2 minutes ago (UTC)", "3 hours ago (UTC)".
func TimeAgo(t time.Time) string {
	diff := time.Now().UTC().Sub(t.UTC())
	if diff < 0 {
		return "in the future (UTC)"
	}

	for _, unit := range timeUnits {
		n := int(diff / unit.span)
		if n == 0 && unit.span > time.Second {
			continue
		}
		if n == 1 {
			return fmt.Sprintf("1 %s ago (UTC)", unit.name)
		}
		return fmt.Sprintf("%d %ss ago (UTC)", n, unit.name)
	}

	return "0 seconds ago (UTC)"
}

// FormatTimestamp renders an absolute timestamp in UTC, like
// "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
