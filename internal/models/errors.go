package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinate is matched by every ValidationError about latitude or longitude.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// ValidationError rejects user-entered data before anything reaches the route store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Field == "latitude" || e.Field == "longitude" {
		return ErrInvalidCoordinate
	}
	return nil
}

// ValidateCoordinate checks a user-entered latitude/longitude pair.
func ValidateCoordinate(latitude, longitude float64) error {
	if math.IsNaN(latitude) || math.IsInf(latitude, 0) {
		return &ValidationError{Field: "latitude", Message: "must be a finite number"}
	}
	if math.IsNaN(longitude) || math.IsInf(longitude, 0) {
		return &ValidationError{Field: "longitude", Message: "must be a finite number"}
	}
	if latitude < -90 || latitude > 90 {
		return &ValidationError{Field: "latitude", Message: "must be between -90 and 90"}
	}
	if longitude < -180 || longitude > 180 {
		return &ValidationError{Field: "longitude", Message: "must be between -180 and 180"}
	}
	return nil
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
