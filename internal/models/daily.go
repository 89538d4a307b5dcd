package models

import "time"

// DailyStatus is what the child home view shows for today
type DailyStatus string

const (
	DailyNotStarted    DailyStatus = "not_started"
	DailyPending       DailyStatus = "pending"
	DailyApproved      DailyStatus = "approved"
	DailyRedoRequested DailyStatus = "redo_requested"
)

// DefaultRedoReason is shown when a parent asks for a redo without a reason
const DefaultRedoReason = "Your parent wants you to try again."

// DailyStatusOf derives today's status from today's completion row, if any
func DailyStatusOf(c *Completion) DailyStatus {
	if c == nil {
		return DailyNotStarted
	}
	switch c.Status {
	case StatusPending:
		return DailyPending
	case StatusApproved:
		return DailyApproved
	case StatusRedoRequested:
		return DailyRedoRequested
	}
	return DailyNotStarted
}

// DailyView is everything the child home view needs for today
type DailyView struct {
	Child       Child
	Status      DailyStatus
	Affirmation DailyAffirmation
	Completion  *Completion

	// EarnedMinutes is set once today's submission is approved
	EarnedMinutes int
	// RewardMinutes is what the child can still earn today
	RewardMinutes int
	RedoReason    string
}

// CanRecord reports whether the child may submit a recording now
func (v DailyView) CanRecord() bool {
	return v.Status == DailyNotStarted || v.Status == DailyRedoRequested
}

// NewDailyView builds the view for a child from today's affirmation and completion
func NewDailyView(child Child, affirmation DailyAffirmation, today *Completion) DailyView {
	view := DailyView{
		Child:       child,
		Status:      DailyStatusOf(today),
		Affirmation: affirmation,
		Completion:  today,
	}

	switch view.Status {
	case DailyApproved:
		if today.ScreenTimeEarnedMinutes != nil {
			view.EarnedMinutes = *today.ScreenTimeEarnedMinutes
		}
	case DailyRedoRequested:
		view.RedoReason = DefaultRedoReason
		if today.RedoReason != nil && *today.RedoReason != "" {
			view.RedoReason = *today.RedoReason
		}
		view.RewardMinutes = child.DailyScreenTimeMinutes
	case DailyNotStarted:
		view.RewardMinutes = child.DailyScreenTimeMinutes
	}

	return view
}

// CalendarDay is one cell of the weekly streak calendar
type CalendarDay struct {
	Date      string
	DayName   string
	Completed bool
	IsToday   bool
}

// WeekCalendar returns the seven days ending at today, oldest first
func WeekCalendar(today time.Time, completedDates []string) []CalendarDay {
	done := make(map[string]bool, len(completedDates))
	for _, d := range completedDates {
		done[d] = true
	}

	days := make([]CalendarDay, 0, 7)
	for i := 6; i >= 0; i-- {
		date := today.AddDate(0, 0, -i)
		key := date.Format(DateLayout)
		days = append(days, CalendarDay{
			Date:      key,
			DayName:   date.Format("Mon"),
			Completed: done[key],
			IsToday:   i == 0,
		})
	}
	return days
}
