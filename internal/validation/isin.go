package validation

import (
	"fmt"
	"strings"
)

// ErrInvalidIsin indicates a malformed ISIN (wrong length or character set).
var ErrInvalidIsin = fmt.Errorf("invalid ISIN")

// ValidateIsin checks the ISIN shape: 12 characters, two-letter country
// prefix, alphanumeric body, numeric check digit. The Luhn check digit
// itself is not verified; broker statements occasionally carry synthetic
// ISINs for unlisted instruments.
func ValidateIsin(isin string) error {
	if len(isin) != 12 {
		return fmt.Errorf("%w: %q must be 12 characters", ErrInvalidIsin, isin)
	}
	for i, c := range isin {
		switch {
		case i < 2:
			if c < 'A' || c > 'Z' {
				return fmt.Errorf("%w: %q must start with a two-letter country code", ErrInvalidIsin, isin)
			}
		case i == 11:
			if c < '0' || c > '9' {
				return fmt.Errorf("%w: %q must end with a numeric check digit", ErrInvalidIsin, isin)
			}
		default:
			if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
				return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidIsin, isin)
			}
		}
	}
	return nil
}

// CountryFromIsin derives the source country from the ISIN's two-letter
// prefix.
func CountryFromIsin(isin string) (string, error) {
	if err := ValidateIsin(strings.ToUpper(isin)); err != nil {
		return "", err
	}
	return strings.ToUpper(isin[:2]), nil
}

// ValidateCountryCode checks an ISO 3166-1 alpha-2 country code shape.
func ValidateCountryCode(code string) error {
	if len(code) != 2 {
		return fmt.Errorf("country code %q must be 2 letters", code)
	}
	for _, c := range strings.ToUpper(code) {
		if c < 'A' || c > 'Z' {
			return fmt.Errorf("country code %q must be 2 letters", code)
		}
	}
	return nil
}

// ValidateCurrency checks an ISO 4217 currency code shape.
func ValidateCurrency(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("currency %q must be 3 letters", code)
	}
	for _, c := range strings.ToUpper(code) {
		if c < 'A' || c > 'Z' {
			return fmt.Errorf("currency %q must be 3 letters", code)
		}
	}
	return nil
}
