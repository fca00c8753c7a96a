package service

import (
	"fmt"

	apperrors "github.com/stayrate/occupancy-proxy/internal/errors"
	"github.com/stayrate/occupancy-proxy/pkg/schedule"
)

// ReservationRequest is the body of the reservations and download endpoints.
type ReservationRequest struct {
	Rooms []schedule.Room `json:"room_list"`
	schedule.DateRange
}

// Validate checks the request before any upstream call.
func (r ReservationRequest) Validate() error {
	if len(r.Rooms) == 0 {
		return apperrors.NewBadRequestError("room_list must not be empty")
	}
	for i, room := range r.Rooms {
		if room.ID <= 0 {
			return apperrors.NewBadRequestError(fmt.Sprintf("room_list[%d].rid must be positive", i))
		}
	}
	if err := r.DateRange.Validate(); err != nil {
		return apperrors.NewBadRequestError(err.Error())
	}
	return nil
}
