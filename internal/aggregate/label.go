package aggregate

import (
	"fmt"

	"payload/internal/domain"
)

var ptBRMonths = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// MonthLabel renders a YYYY-MM key the way the courier app shows it,
// e.g. "março de 2024". Malformed keys are returned unchanged.
func MonthLabel(monthKey string) string {
	t, err := domain.ParseMonthKey(monthKey)
	if err != nil {
		return monthKey
	}
	return fmt.Sprintf("%s de %d", ptBRMonths[t.Month()-1], t.Year())
}
