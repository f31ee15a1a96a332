package appointment

import "errors"

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrPatientSlotTaken        = errors.New("patient already has an appointment in this time range")
	ErrProviderSlotTaken       = errors.New("provider already has an appointment in this time range")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
	ErrInvalidTimeRange        = errors.New("appointment end time must be after start time")
	ErrInvalidStatus           = errors.New("invalid appointment status")
)
