package vehicle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	sedan := Specification{Model: "Corolla", Type: TypeStandard, Seats: 4, PetFriendly: true}

	cases := []struct {
		name      string
		requested Specification
		offered   Specification
		want      bool
	}{
		{"exact", Specification{Type: TypeStandard, Seats: 4, PetFriendly: true}, sedan, true},
		{"fewer seats requested", Specification{Type: TypeStandard, Seats: 2}, sedan, true},
		{"too many seats", Specification{Type: TypeStandard, Seats: 5}, sedan, false},
		{"type mismatch", Specification{Type: TypeLuxury, Seats: 2}, sedan, false},
		{"van does not serve standard", Specification{Type: TypeStandard, Seats: 2}, Specification{Type: TypeVan, Seats: 8}, false},
		{"pet required and offered", Specification{Type: TypeStandard, Seats: 1, PetFriendly: true}, sedan, true},
		{"baby required but missing", Specification{Type: TypeStandard, Seats: 1, BabyFriendly: true}, sedan, false},
		{"extras offered but not required", Specification{Type: TypeStandard, Seats: 1}, Specification{Type: TypeStandard, Seats: 4, PetFriendly: true, BabyFriendly: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Matches(tc.requested, tc.offered))
		})
	}
}

func TestSpecificationValidate(t *testing.T) {
	assert.NoError(t, Specification{Type: TypeVan, Seats: 7}.Validate())
	assert.Error(t, Specification{Type: "luxury", Seats: 2}.Validate(), "types are canonical upper case")

	err := Specification{Type: "BUS", Seats: 40}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidSpecification))

	err = Specification{Type: TypeStandard, Seats: 0}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidSpecification))
}

func TestParseType(t *testing.T) {
	got, err := ParseType(" van ")
	assert.NoError(t, err)
	assert.Equal(t, TypeVan, got)
}
