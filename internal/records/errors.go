package records

import "errors"

var (
	// ErrNotFound is returned when no record exists for an RO number.
	ErrNotFound = errors.New("record not found")
	// ErrShopNotFound is returned when shop directory lookup finds no match.
	ErrShopNotFound = errors.New("shop not found")
	// ErrInvalidRONumber is returned for keys that are not 4-8 digits.
	ErrInvalidRONumber = errors.New("invalid ro number")
)
