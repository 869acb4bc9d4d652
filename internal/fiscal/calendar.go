package fiscal

import "time"

// PeriodWindow is one month's date range before persistence.
type PeriodWindow struct {
	PeriodNo  int
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// BuildPeriods returns twelve contiguous monthly windows starting on the
// first day of startMonth in year. Arithmetic anchors on day one so
// short months never truncate the sequence.
func BuildPeriods(year int, startMonth time.Month) []PeriodWindow {
	anchor := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	windows := make([]PeriodWindow, 0, 12)
	for i := 0; i < 12; i++ {
		start := anchor.AddDate(0, i, 0)
		end := start.AddDate(0, 1, -1)
		windows = append(windows, PeriodWindow{
			PeriodNo:  i + 1,
			Name:      start.Format("Jan 2006"),
			StartDate: start,
			EndDate:   end,
		})
	}
	return windows
}

// YearRange returns the inclusive date range a fiscal year spans.
func YearRange(year int, startMonth time.Month) (time.Time, time.Time) {
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, -1)
}
