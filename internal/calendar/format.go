package calendar

import (
	"fmt"
	"time"
)

var ruWeekdays = [...]string{
	time.Sunday:    "Воскресенье",
	time.Monday:    "Понедельник",
	time.Tuesday:   "Вторник",
	time.Wednesday: "Среда",
	time.Thursday:  "Четверг",
	time.Friday:    "Пятница",
	time.Saturday:  "Суббота",
}

// FormatWindow форматирует окно для уведомлений: "Среда, 01.05.2024, 10:00–11:00".
func FormatWindow(w Window) string {
	// Для календарной даты зона не важна, берём UTC.
	day := w.Date.Midnight(time.UTC)
	return fmt.Sprintf("%s, %s, %s–%s",
		ruWeekdays[day.Weekday()],
		day.Format("02.01.2006"),
		clock(w.StartMinute),
		clock(w.EndMinute),
	)
}

func clock(minute int) string {
	minute %= MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
