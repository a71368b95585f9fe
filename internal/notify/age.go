package notify

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

const week = 7 * 24 * time.Hour

var ageMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "now", DivBy: time.Second},
	{D: time.Hour, Format: "%d min %s", DivBy: time.Minute},
	{D: 24 * time.Hour, Format: "%dh %s", DivBy: time.Hour},
	{D: week, Format: "%dd %s", DivBy: 24 * time.Hour},
}

// Age renders how long ago t was: "now", "5 min ago", "3h ago", "2d ago",
// then the date once a week has passed.
func Age(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	switch d := now.Sub(t); {
	case d < time.Minute:
		return "now"
	case d >= week:
		return t.Local().Format("2006-01-02")
	}
	return humanize.CustomRelTime(t, now, "ago", "from now", ageMagnitudes)
}

// Badge is the unread counter as shown next to the bell; "" when zero.
func Badge(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > 99:
		return "99+"
	}
	return strconv.Itoa(unread)
}
