// Package reltime renders timestamps relative to a reference instant with
// graduated precision, optionally paired with an absolute rendering. Output
// is locale-sensitive through x/text message catalogs.
package reltime

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

var units = []string{"second", "minute", "hour", "day", "week", "month", "year"}

func init() {
	for _, unit := range units {
		_ = message.Set(language.English, fmt.Sprintf("%%d %ss ago", unit),
			plural.Selectf(1, "",
				plural.One, fmt.Sprintf("%%d %s ago", unit),
				plural.Other, fmt.Sprintf("%%d %ss ago", unit)))
		_ = message.Set(language.English, fmt.Sprintf("in %%d %ss", unit),
			plural.Selectf(1, "",
				plural.One, fmt.Sprintf("in %%d %s", unit),
				plural.Other, fmt.Sprintf("in %%d %ss", unit)))
	}
	_ = message.SetString(language.English, "now", "now")
}

// Format renders ts relative to now. The absolute part, when present, is
// rendered in the fixed UTC offset (minutes) supplied by the caller.
func Format(ts, now time.Time, offsetMinutes int, tag language.Tag) string {
	p := message.NewPrinter(tag)
	zone := time.FixedZone("", offsetMinutes*60)
	local := ts.In(zone)

	diff := ts.Sub(now)
	secs := diff.Seconds()
	abs := math.Abs(secs)

	switch {
	case abs < 60:
		return relative(p, jsRound(secs), "second")
	case abs < time.Hour.Seconds():
		return relative(p, jsRound(secs/60), "minute")
	case abs < day.Seconds():
		return relative(p, jsRound(secs/3600), "hour") + ", " + local.Format("15:04")
	}

	days := secs / day.Seconds()
	switch absDays := math.Abs(days); {
	case absDays > 365:
		return relative(p, jsRound(days/365), "year") + ", " + local.Format("02/01/06")
	case absDays > 33:
		return relative(p, jsRound(days/30), "month") + ", " + local.Format("02/01")
	case absDays > 7:
		return relative(p, jsRound(days/7), "week") + ", " + local.Format("02/01")
	default:
		return relative(p, jsRound(days), "day") + ", " + local.Format("15:04")
	}
}

func relative(p *message.Printer, n int, unit string) string {
	switch {
	case n == 0:
		return p.Sprintf("now")
	case n < 0:
		return p.Sprintf(fmt.Sprintf("%%d %ss ago", unit), -n)
	default:
		return p.Sprintf(fmt.Sprintf("in %%d %ss", unit), n)
	}
}

// jsRound rounds half away from zero toward positive infinity, matching
// ECMAScript Math.round so thresholds land on the same unit counts as the
// browser renderer.
func jsRound(x float64) int {
	return int(math.Floor(x + 0.5))
}
