package registry

// Change tells a backend what to persist for an interest after a Forget.
type Change int

const (
	// Unchanged means nothing needs writing.
	Unchanged Change = iota
	// Replace means the interest now holds the returned value.
	Replace
	// Delete means the interest must be removed entirely.
	Delete
)

// PlanForget works out the result of forgetting token from the current
// value of an interest, so every backend applies the same rules.
//
// A non-empty token against a non-empty list removes that one token and
// drops the interest once the list is empty. Anything else (no token, a
// Single, an empty list, a missing interest) removes the whole interest.
// forgotten is the value Forget must report.
func PlanForget(current Tokens, found bool, token string) (next Tokens, change Change, forgotten bool) {
	if token == "" || !found || !current.IsMany() || current.Len() == 0 {
		return Tokens{}, Delete, true
	}

	rest, ok := current.Without(token)
	if !ok {
		return current, Unchanged, false
	}
	if rest.Len() == 0 {
		return Tokens{}, Delete, true
	}
	return rest, Replace, !rest.Contains(token)
}
