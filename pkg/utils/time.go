package utils

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// FormatDuration renders solver call and run durations. Runs longer than a
// day are shown with a day count, e.g. "3d4h12m0s".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return d.String()
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(10 * time.Millisecond).String()
	case d < day:
		return d.Round(time.Second).String()
	}
	d = d.Round(time.Minute)
	days := d / day
	return fmt.Sprintf("%dd%s", days, d-days*day)
}
