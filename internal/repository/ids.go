package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidID is returned for identifiers that are not UUIDs
var ErrInvalidID = errors.New("invalid id")

func validateID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s %q", ErrInvalidID, kind, id)
	}
	return nil
}

func validateIDs(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := validateID(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}
