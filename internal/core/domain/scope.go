package domain

import (
	"encoding/json"
	"strings"
)

// Google Photos OAuth2 scopes.
const (
	// ScopePickerReadonly allows reading media items the user picked in a Picker session.
	ScopePickerReadonly = "https://www.googleapis.com/auth/photospicker.mediaitems.readonly"
	// ScopeLibraryReadonlyAppCreated allows reading media and albums created by this app.
	ScopeLibraryReadonlyAppCreated = "https://www.googleapis.com/auth/photoslibrary.readonly.appcreateddata"
	// ScopeLibraryAppendOnly allows uploading media and creating albums.
	ScopeLibraryAppendOnly = "https://www.googleapis.com/auth/photoslibrary.appendonly"
	// ScopeLibraryEditAppCreated allows editing media and albums created by this app.
	ScopeLibraryEditAppCreated = "https://www.googleapis.com/auth/photoslibrary.edit.appcreateddata"
)

// DefaultScopes are requested at consent time when none are configured.
var DefaultScopes = []string{ScopePickerReadonly, ScopeLibraryReadonlyAppCreated}

// ScopeSet is an ordered set of granted OAuth scopes.
// Insertion order is preserved and duplicates are dropped.
type ScopeSet struct {
	items []string
}

// NewScopeSet builds a set from the given scopes, ignoring blanks and duplicates.
func NewScopeSet(scopes ...string) ScopeSet {
	var s ScopeSet
	for _, sc := range scopes {
		s = s.add(sc)
	}
	return s
}

// ParseScopes parses a space or comma separated scope list,
// as returned in the "scope" field of a token response.
func ParseScopes(raw string) ScopeSet {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\n' || r == '\t'
	})
	return NewScopeSet(fields...)
}

func (s ScopeSet) add(scope string) ScopeSet {
	scope = strings.TrimSpace(scope)
	if scope == "" || s.Contains(scope) {
		return s
	}
	items := make([]string, len(s.items), len(s.items)+1)
	copy(items, s.items)
	return ScopeSet{items: append(items, scope)}
}

// Contains reports whether scope was granted.
func (s ScopeSet) Contains(scope string) bool {
	for _, sc := range s.items {
		if sc == scope {
			return true
		}
	}
	return false
}

// Covers reports whether every required scope is in the set.
func (s ScopeSet) Covers(required ...string) bool {
	return len(s.Missing(required...)) == 0
}

// Missing returns the required scopes that are not in the set, in order.
func (s ScopeSet) Missing(required ...string) []string {
	var missing []string
	for _, r := range required {
		if r != "" && !s.Contains(r) {
			missing = append(missing, r)
		}
	}
	return missing
}

// IsEmpty returns true if no scopes are recorded.
// An empty set means the granted scopes are unknown, not that nothing was granted.
func (s ScopeSet) IsEmpty() bool {
	return len(s.items) == 0
}

// Len returns the number of scopes.
func (s ScopeSet) Len() int {
	return len(s.items)
}

// Strings returns a copy of the scopes in insertion order.
func (s ScopeSet) Strings() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// String joins the scopes with spaces, the OAuth2 wire format.
func (s ScopeSet) String() string {
	return strings.Join(s.items, " ")
}

// MarshalJSON encodes the set as a JSON array.
func (s ScopeSet) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

// UnmarshalJSON accepts either a JSON array or a space separated string.
func (s *ScopeSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = NewScopeSet(list...)
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseScopes(raw)
	return nil
}
