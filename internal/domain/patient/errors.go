package patient

import "errors"

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPatientAlreadyExists = errors.New("patient with this national ID already exists")
	ErrPatientInactive      = errors.New("patient record is inactive")
)
