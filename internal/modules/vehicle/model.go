// README: Vehicle specification shared by driver vehicles and ride requests.
package vehicle

import (
	"errors"
	"fmt"
	"strings"
)

type Type string

const (
	TypeStandard Type = "STANDARD"
	TypeLuxury   Type = "LUXURY"
	TypeVan      Type = "VAN"
)

var ErrInvalidSpecification = errors.New("invalid vehicle specification")

// Specification describes what a vehicle offers, or what a ride requires.
// Rides hold a copy taken at request time.
type Specification struct {
	Model        string `json:"model"`
	Type         Type   `json:"type"`
	Seats        int    `json:"seats"`
	PetFriendly  bool   `json:"petFriendly"`
	BabyFriendly bool   `json:"babyFriendly"`
}

// ParseType accepts any letter case.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TypeStandard, TypeLuxury, TypeVan:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown vehicle type %q", ErrInvalidSpecification, s)
}

func (s Specification) Validate() error {
	switch s.Type {
	case TypeStandard, TypeLuxury, TypeVan:
	default:
		return fmt.Errorf("%w: unknown vehicle type %q", ErrInvalidSpecification, s.Type)
	}
	if s.Seats < 1 {
		return fmt.Errorf("%w: seats must be at least 1, got %d", ErrInvalidSpecification, s.Seats)
	}
	return nil
}
