// --- File: pkg/registry/tokens.go ---
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type tokensKind uint8

const (
	kindNone tokensKind = iota
	kindSingle
	kindMany
)

// Tokens is the value stored under an interest.
// It is EITHER a single legacy token OR an ordered list of tokens.
// The zero value holds nothing and is never persisted.
type Tokens struct {
	kind   tokensKind
	single string
	many   []string
}

// Single wraps one bare token (the legacy scalar representation).
func Single(token string) Tokens {
	return Tokens{kind: kindSingle, single: token}
}

// Many wraps an ordered list of tokens.
func Many(tokens ...string) Tokens {
	list := make([]string, len(tokens))
	copy(list, tokens)
	return Tokens{kind: kindMany, many: list}
}

func (t Tokens) IsZero() bool   { return t.kind == kindNone }
func (t Tokens) IsSingle() bool { return t.kind == kindSingle }
func (t Tokens) IsMany() bool   { return t.kind == kindMany }

// Len returns the number of tokens held.
func (t Tokens) Len() int {
	switch t.kind {
	case kindSingle:
		return 1
	case kindMany:
		return len(t.many)
	}
	return 0
}

// List flattens the value into a fresh slice, in stored order.
func (t Tokens) List() []string {
	switch t.kind {
	case kindSingle:
		return []string{t.single}
	case kindMany:
		out := make([]string, len(t.many))
		copy(out, t.many)
		return out
	}
	return []string{}
}

// Contains reports whether token is held (exact equality).
func (t Tokens) Contains(token string) bool {
	switch t.kind {
	case kindSingle:
		return t.single == token
	case kindMany:
		for _, v := range t.many {
			if v == token {
				return true
			}
		}
	}
	return false
}

// With returns the value after adding token.
// A Single is promoted to a one-element Many first; an existing token is not re-added.
// A zero value becomes Many(token).
func (t Tokens) With(token string) Tokens {
	var list []string
	switch t.kind {
	case kindSingle:
		list = []string{t.single}
	case kindMany:
		list = make([]string, len(t.many), len(t.many)+1)
		copy(list, t.many)
	}

	next := Tokens{kind: kindMany, many: list}
	if next.Contains(token) {
		return next
	}
	next.many = append(next.many, token)
	return next
}

// Without removes the first occurrence of token from a Many, keeping the
// relative order of the survivors. found is false when the token is not
// in the list or the value is not a Many.
func (t Tokens) Without(token string) (rest Tokens, found bool) {
	if t.kind != kindMany {
		return t, false
	}
	for i, v := range t.many {
		if v != token {
			continue
		}
		list := make([]string, 0, len(t.many)-1)
		list = append(list, t.many[:i]...)
		list = append(list, t.many[i+1:]...)
		return Tokens{kind: kindMany, many: list}, true
	}
	return t, false
}

// MarshalJSON writes a Single as a JSON string and a Many as a JSON array.
func (t Tokens) MarshalJSON() ([]byte, error) {
	switch t.kind {
	case kindSingle:
		return json.Marshal(t.single)
	case kindMany:
		if t.many == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(t.many)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts both stored representations.
// Non-string elements inside an array are dropped; any other JSON type is an error.
func (t *Tokens) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = Tokens{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Single(s)
		return nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		list := make([]string, 0, len(raw))
		for _, elem := range raw {
			if bytes.Equal(bytes.TrimSpace(elem), []byte("null")) {
				continue
			}
			var s string
			if err := json.Unmarshal(elem, &s); err != nil {
				continue
			}
			list = append(list, s)
		}
		*t = Tokens{kind: kindMany, many: list}
		return nil
	}
	return fmt.Errorf("tokens must be a string or an array of strings, got %s", trimmed)
}
