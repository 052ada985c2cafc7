package service

import (
	"errors"
	"strings"
	"time"

	"tourbook/internal/models"

	"github.com/araddon/dateparse"
)

var ErrInvalidDate = errors.New("invalid date")

// NormalizeDate returns the canonical YYYY-MM-DD form of raw. Inputs without
// a zone are read as UTC; zoned inputs are converted to UTC before the day is
// taken. Slash dates are month first.
func NormalizeDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidDate
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return "", ErrInvalidDate
	}
	return t.UTC().Format(models.DateLayout), nil
}

// daysBetween counts calendar days from start to end, both YYYY-MM-DD.
func daysBetween(start, end string) int {
	s, err1 := time.Parse(models.DateLayout, start)
	e, err2 := time.Parse(models.DateLayout, end)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(e.Sub(s).Hours() / 24)
}
