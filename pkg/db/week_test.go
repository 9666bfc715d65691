package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekID(t *testing.T) {
	// 2026-01-05 is the Monday of ISO week 2 of 2026.
	assert.Equal(t, 202602, WeekID(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))
	// 2026-01-01 falls in ISO week 1.
	assert.Equal(t, 202601, WeekID(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	// Sunday and the following Monday land in different weeks.
	sunday := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	monday := time.Date(2026, 8, 31, 0, 1, 0, 0, time.UTC)
	assert.NotEqual(t, WeekID(sunday), WeekID(monday))
}
