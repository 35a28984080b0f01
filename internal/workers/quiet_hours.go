package workers

import (
	"time"

	"github.com/zapfunil/zapfunil/internal/models"
)

// quietResume is the margin added after the window closes before the first
// send is allowed again.
const quietResume = 5 * time.Minute

// quietWindow is a daily local-time window in which automated sends are
// forbidden. start > end means the window wraps midnight (ex: 22:00-08:00).
type quietWindow struct {
	start time.Duration // offset from local midnight
	end   time.Duration
	loc   *time.Location
}

// quietWindowFrom parses the settings window. ok=false when no window is
// configured or the values do not parse.
func quietWindowFrom(settings *models.AutomationSettings) (quietWindow, bool) {
	if settings == nil || settings.QuietHoursStart == "" || settings.QuietHoursEnd == "" {
		return quietWindow{}, false
	}

	start, err := parseClock(settings.QuietHoursStart)
	if err != nil {
		return quietWindow{}, false
	}
	end, err := parseClock(settings.QuietHoursEnd)
	if err != nil {
		return quietWindow{}, false
	}

	loc := time.UTC
	if settings.Timezone != "" {
		if l, err := time.LoadLocation(settings.Timezone); err == nil {
			loc = l
		}
	}
	return quietWindow{start: start, end: end, loc: loc}, true
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// contains reports whether t's local time-of-day falls inside the window,
// inclusive at both ends.
func (w quietWindow) contains(t time.Time) bool {
	lt := t.In(w.loc)
	tod := time.Duration(lt.Hour())*time.Hour +
		time.Duration(lt.Minute())*time.Minute +
		time.Duration(lt.Second())*time.Second

	if w.start <= w.end {
		return tod >= w.start && tod <= w.end
	}
	// wraps midnight
	return tod >= w.start || tod <= w.end
}

// nextEligible returns the first allowed send instant after t: window end
// plus the resume margin, on the same local day when that is still ahead,
// otherwise the next day.
func (w quietWindow) nextEligible(t time.Time) time.Time {
	lt := t.In(w.loc)
	midnight := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, w.loc)

	candidate := midnight.Add(w.end + quietResume)
	if candidate.After(lt) {
		return candidate
	}
	return candidate.AddDate(0, 0, 1)
}
