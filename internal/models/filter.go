package models

import (
	"errors"
	"strings"
	"time"
)

// DayLayout is the format of the from and to filter bounds.
const DayLayout = "2006-01-02"

var ErrRangeReversed = errors.New("to must not be before from")

// DayError reports a filter bound that is not a YYYY-MM-DD date. Field is
// "from" or "to".
type DayError struct {
	Field string
	Err   error
}

func (e *DayError) Error() string {
	return e.Field + " must be a date in YYYY-MM-DD format"
}

func (e *DayError) Unwrap() error {
	return e.Err
}

// ParseFilterParams builds FilterParams from raw text such as query
// parameters or command flags. Blank bounds are unset.
func ParseFilterParams(from, to, vehicleType, repairType, workshop string) (FilterParams, error) {
	p := FilterParams{
		VehicleType: strings.TrimSpace(vehicleType),
		RepairType:  strings.TrimSpace(repairType),
		Workshop:    strings.TrimSpace(workshop),
	}

	var err error
	if p.From, err = parseDay(from); err != nil {
		return p, &DayError{Field: "from", Err: err}
	}
	if p.To, err = parseDay(to); err != nil {
		return p, &DayError{Field: "to", Err: err}
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.To.Before(p.From) {
		return p, ErrRangeReversed
	}
	return p, nil
}

func parseDay(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(DayLayout, v)
}
