// Package utils содержит утилитарные функции, используемые в разных частях приложения
package utils

import (
	"fmt"
	"math"
	"time"
)

// FormatTime форматирует секунды в формат M:SS. Отрицательные, нулевые
// и бесконечные значения дают 0:00.
func FormatTime(sec float64) string {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec <= 0 {
		return "0:00"
	}
	total := int(sec)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatDuration форматирует time.Duration в формат M:SS
func FormatDuration(d time.Duration) string {
	return FormatTime(d.Seconds())
}

// FormatDurationFromSeconds форматирует продолжительность в секундах в формат HH:MM:SS
func FormatDurationFromSeconds(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// Progress возвращает долю прослушанного от 0 до 1
func Progress(current, total float64) float64 {
	if total <= 0 || math.IsNaN(current) {
		return 0
	}
	return math.Min(math.Max(current/total, 0), 1)
}

// TruncateString обрезает строку до указанной длины в символах, добавляя "..." если строка длиннее
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
