package timetrack

import "errors"

var (
	// ErrInvalidSite is returned when a hostname does not normalize to a site identifier
	ErrInvalidSite = errors.New("invalid site")
	// ErrInvalidDate is returned for day keys that are not YYYY-MM-DD
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidDuration is returned for negative accruals
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidSettings is returned when settings fail validation
	ErrInvalidSettings = errors.New("invalid settings")
)

// IsInvalidInput reports whether err was caused by caller input
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidSite) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidSettings)
}
