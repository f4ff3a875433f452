package progression

import (
	"alcyxob/wellness-portal/internal/domain"
	"math"
	"time"
)

// Weekly quotas behind the completion percentage and the completion gate.
// The denominator always assumes a full seven-day week.
const (
	MealLogQuota   = 7
	WeightLogQuota = 7
	MinWeightLogs  = 1
	DaysPerWeek    = 7
)

// WeekStatus derives a week's status from its number and the program's
// position. It is never read from storage.
func WeekStatus(p *domain.Program, weekNumber int) domain.WeekStatus {
	switch {
	case p.Finished || weekNumber < p.CurrentWeek:
		return domain.WeekCompleted
	case weekNumber == p.CurrentWeek:
		return domain.WeekCurrent
	default:
		return domain.WeekLocked
	}
}

// WeekCompletion is round(100 * done / (videos + 7 + 7)). Completed weeks
// report 100.
func WeekCompletion(p *domain.Program, week *domain.ProgramWeek) int {
	if WeekStatus(p, week.Number) == domain.WeekCompleted {
		return 100
	}
	watched := 0
	for _, v := range week.Videos {
		if v.Watched {
			watched++
		}
	}
	done := watched + len(week.MealLogs) + len(week.WeightLogs)
	total := len(week.Videos) + MealLogQuota + WeightLogQuota
	return int(math.Round(100 * float64(done) / float64(total)))
}

// CanCompleteWeek reports whether every video is watched, at least seven meals
// and at least one weight entry are logged.
func CanCompleteWeek(week *domain.ProgramWeek) bool {
	for _, v := range week.Videos {
		if !v.Watched {
			return false
		}
	}
	return len(week.MealLogs) >= MealLogQuota && len(week.WeightLogs) >= MinWeightLogs
}

// IsoWeekday returns 1 for Monday through 7 for Sunday.
func IsoWeekday(t time.Time) int {
	if wd := t.Weekday(); wd != time.Sunday {
		return int(wd)
	}
	return 7
}

// IsDayAccessible reports whether logging is open for a day (1..7) of a week.
// Past weeks are fully open, future weeks fully closed, and the current week
// is open up to today's ISO weekday.
func IsDayAccessible(p *domain.Program, weekNumber, day int, now time.Time) bool {
	if day < 1 || day > DaysPerWeek {
		return false
	}
	switch WeekStatus(p, weekNumber) {
	case domain.WeekCompleted:
		return true
	case domain.WeekCurrent:
		return day <= IsoWeekday(now)
	default:
		return false
	}
}

// AccessibleDays lists the days of a week that accept new logs.
func AccessibleDays(p *domain.Program, weekNumber int, now time.Time) []int {
	days := []int{}
	for d := 1; d <= DaysPerWeek; d++ {
		if IsDayAccessible(p, weekNumber, d, now) {
			days = append(days, d)
		}
	}
	return days
}

// CanWatch reports whether a video may be played and marked watched.
func CanWatch(p *domain.Program, weekNumber int, v *domain.Video, now time.Time) bool {
	if WeekStatus(p, weekNumber) == domain.WeekLocked {
		return false
	}
	switch v.AccessType {
	case domain.AccessOpen:
		return true
	case domain.AccessDaily:
		if v.DayRequired == nil {
			return true
		}
		return IsDayAccessible(p, weekNumber, *v.DayRequired, now)
	default:
		return false
	}
}

// WeekView is a week together with its derived state.
type WeekView struct {
	domain.ProgramWeek
	Status         domain.WeekStatus `json:"status"`
	Completion     int               `json:"completion"`
	CanComplete    bool              `json:"canComplete"`
	AccessibleDays []int             `json:"accessibleDays"`
}

// ProgramView is a program snapshot with every week's derived state.
type ProgramView struct {
	ID           string               `json:"id"`
	PlanName     string               `json:"planName"`
	TotalWeeks   int                  `json:"totalWeeks"`
	CurrentWeek  int                  `json:"currentWeek"`
	Finished     bool                 `json:"finished"`
	Weeks        []WeekView           `json:"weeks"`
	Appointments []domain.Appointment `json:"appointments"`
}

// View computes the derived state of every week of p at time now.
func View(p *domain.Program, now time.Time) ProgramView {
	p = p.Clone()
	view := ProgramView{
		ID:           p.ID.Hex(),
		PlanName:     p.PlanName,
		TotalWeeks:   p.TotalWeeks,
		CurrentWeek:  p.CurrentWeek,
		Finished:     p.Finished,
		Weeks:        make([]WeekView, len(p.Weeks)),
		Appointments: p.Appointments,
	}
	for i := range p.Weeks {
		view.Weeks[i] = viewWeek(p, &p.Weeks[i], now)
	}
	return view
}

func viewWeek(p *domain.Program, w *domain.ProgramWeek, now time.Time) WeekView {
	return WeekView{
		ProgramWeek:    *w,
		Status:         WeekStatus(p, w.Number),
		Completion:     WeekCompletion(p, w),
		CanComplete:    CanCompleteWeek(w),
		AccessibleDays: AccessibleDays(p, w.Number, now),
	}
}
