// README: Driver daily working-time log.
package worktime

import (
	"time"

	"ridehail/internal/types"
)

// DailyLog is the working time of one driver on one calendar day. Day is the
// civil date at midnight UTC.
type DailyLog struct {
	DriverID      types.ID   `json:"driverId"`
	Day           time.Time  `json:"day"`
	ActiveSeconds int64      `json:"activeSeconds"`
	Active        bool       `json:"active"`
	ActiveSince   *time.Time `json:"activeSince,omitempty"`
}

// Total includes the still-running interval as of at.
func (l DailyLog) Total(at time.Time) int64 {
	if !l.Active || l.ActiveSince == nil {
		return l.ActiveSeconds
	}
	return l.ActiveSeconds + elapsedSeconds(*l.ActiveSince, at)
}

func elapsedSeconds(since, at time.Time) int64 {
	d := at.Sub(since)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// Civil truncates t to its calendar date in loc.
func Civil(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
