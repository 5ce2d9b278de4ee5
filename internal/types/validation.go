package types

import (
	"fmt"
	"time"
)

// Validation constraint constants.
const (
	MinLat        = -90.0
	MaxLat        = 90.0
	MinLon        = -180.0
	MaxLon        = 180.0
	MaxNameLength = 120
	MinHour       = 0
	MaxHour       = 23
)

// weekdayNames is the set of accepted commute day names, matching
// time.Weekday.String() output.
var weekdayNames = map[string]struct{}{
	"Sunday": {}, "Monday": {}, "Tuesday": {}, "Wednesday": {},
	"Thursday": {}, "Friday": {}, "Saturday": {},
}

// ValidateCoordinates checks a latitude/longitude pair against the valid
// geographic ranges.
func ValidateCoordinates(lat, lon float64) error {
	if lat < MinLat || lat > MaxLat {
		return NewAppError(ErrCodeValidationInvalidLat,
			fmt.Sprintf("latitude %.4f outside [%.0f, %.0f]", lat, MinLat, MaxLat), nil)
	}
	if lon < MinLon || lon > MaxLon {
		return NewAppError(ErrCodeValidationInvalidLon,
			fmt.Sprintf("longitude %.4f outside [%.0f, %.0f]", lon, MinLon, MaxLon), nil)
	}
	return nil
}

// Validate implements the Validator interface for Location.
func (l Location) Validate() error {
	if l.Name == "" {
		return NewAppError(ErrCodeValidationMissingField, "location name is required", nil)
	}
	if len(l.Name) > MaxNameLength {
		return NewAppError(ErrCodeValidationMissingField,
			fmt.Sprintf("location name exceeds %d characters", MaxNameLength), nil)
	}
	return ValidateCoordinates(l.Lat, l.Lon)
}

// Validate implements the Validator interface for HourWindow. Both bounds
// must be valid clock hours and the end must come after the start.
func (w HourWindow) Validate() error {
	if w.StartHour < MinHour || w.StartHour > MaxHour || w.EndHour < MinHour || w.EndHour > MaxHour {
		return NewAppError(ErrCodeValidationHourWindow,
			fmt.Sprintf("hours must be within [%d, %d], got %s", MinHour, MaxHour, w), nil)
	}
	if w.EndHour <= w.StartHour {
		return NewAppError(ErrCodeValidationHourWindow,
			fmt.Sprintf("end hour must be after start hour, got %s", w), nil)
	}
	return nil
}

// ValidateTimezone checks that the name resolves as an IANA zone.
func ValidateTimezone(name string) error {
	if name == "" {
		return NewAppError(ErrCodeValidationInvalidTimezone, "timezone is required", nil)
	}
	if _, err := time.LoadLocation(name); err != nil {
		return NewAppError(ErrCodeValidationInvalidTimezone,
			fmt.Sprintf("unknown timezone %q", name), err)
	}
	return nil
}

// ValidateCommuteDays checks that every entry is a recognized weekday name.
func ValidateCommuteDays(days []string) error {
	for _, d := range days {
		if _, ok := weekdayNames[d]; !ok {
			return NewAppError(ErrCodeValidationInvalidDay,
				fmt.Sprintf("invalid commute day %q", d), nil)
		}
	}
	return nil
}

// Validate implements the Validator interface for Rider. It covers the
// structural rules that the tag-based validator cannot express.
func (r *Rider) Validate() error {
	if err := r.RideIn.Validate(); err != nil {
		return err
	}
	if err := r.RideBack.Validate(); err != nil {
		return err
	}
	if err := ValidateTimezone(r.Timezone); err != nil {
		return err
	}
	if err := ValidateCommuteDays(r.CommuteDays); err != nil {
		return err
	}
	if len(r.Locations) == 0 {
		return NewAppError(ErrCodeValidationMissingField, "at least one location is required", nil)
	}
	for _, loc := range r.Locations {
		if err := loc.Validate(); err != nil {
			return err
		}
	}
	return nil
}
