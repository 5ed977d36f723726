package server

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costbook/internal/leadtime"
)

const dateOnlyLayout = "2006-01-02"

var errInvalidDate = errors.New("invalid_date")

// parseOptionalDate accepts YYYY-MM-DD or RFC3339 and returns the calendar day.
func parseOptionalDate(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		day := leadtime.Date(parsed)
		return &day, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		day := leadtime.Date(parsed)
		return &day, nil
	}
	return nil, errInvalidDate
}

// parseOptionalSnowflakeID returns 0 for an empty value.
func parseOptionalSnowflakeID(value string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid_snowflake_id")
	}
	return parsed, nil
}
