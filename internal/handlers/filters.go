package handlers

import (
	stderrors "errors"
	"net/http"

	"repair-dashboard/internal/errors"
	"repair-dashboard/internal/models"
)

// filterSignals are the datastar signals bound to the filter bar. They use
// the same names as the query parameters of the JSON endpoints.
type filterSignals struct {
	From        string `json:"from"`
	To          string `json:"to"`
	VehicleType string `json:"vehicle_type"`
	RepairType  string `json:"repair_type"`
	Workshop    string `json:"workshop"`
}

func parseFilterParams(r *http.Request) (models.FilterParams, error) {
	q := r.URL.Query()
	return filterSignals{
		From:        q.Get("from"),
		To:          q.Get("to"),
		VehicleType: q.Get("vehicle_type"),
		RepairType:  q.Get("repair_type"),
		Workshop:    q.Get("workshop"),
	}.params()
}

func (s filterSignals) params() (models.FilterParams, error) {
	p, err := models.ParseFilterParams(s.From, s.To, s.VehicleType, s.RepairType, s.Workshop)
	if err != nil {
		var dayErr *models.DayError
		if stderrors.As(err, &dayErr) {
			return p, errors.ValidationWrap(dayErr.Err, dayErr.Error())
		}
		return p, errors.Validation(err.Error())
	}
	return p, nil
}
