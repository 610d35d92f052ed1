package vehicle

// Matches reports whether the offered vehicle satisfies every requirement of
// the requested specification. There is no partial credit.
func Matches(requested, offered Specification) bool {
	if offered.Type != requested.Type {
		return false
	}
	if offered.Seats < requested.Seats {
		return false
	}
	if requested.PetFriendly && !offered.PetFriendly {
		return false
	}
	if requested.BabyFriendly && !offered.BabyFriendly {
		return false
	}
	return true
}
