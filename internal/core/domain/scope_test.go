package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScopeSet_DropsBlanksAndDuplicates(t *testing.T) {
	s := NewScopeSet("b", "", "a", "b", "  ")
	assert.Equal(t, []string{"b", "a"}, s.Strings())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "b a", s.String())
}

func TestParseScopes(t *testing.T) {
	s := ParseScopes(ScopePickerReadonly + " " + ScopeLibraryAppendOnly + "," + ScopePickerReadonly)
	assert.Equal(t, []string{ScopePickerReadonly, ScopeLibraryAppendOnly}, s.Strings())
	assert.True(t, ParseScopes("").IsEmpty())
}

func TestScopeSet_Missing(t *testing.T) {
	s := NewScopeSet(ScopePickerReadonly)

	assert.True(t, s.Covers(ScopePickerReadonly))
	assert.True(t, s.Covers())
	assert.False(t, s.Covers(ScopePickerReadonly, ScopeLibraryReadonlyAppCreated))
	assert.Equal(t, []string{ScopeLibraryReadonlyAppCreated}, s.Missing(ScopeLibraryReadonlyAppCreated, "", ScopePickerReadonly))
}

func TestScopeSet_StringsIsACopy(t *testing.T) {
	s := NewScopeSet("a")
	out := s.Strings()
	out[0] = "changed"
	assert.True(t, s.Contains("a"))
}

func TestScopeSet_JSON(t *testing.T) {
	data, err := json.Marshal(NewScopeSet("a", "b"))
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(data))

	data, err = json.Marshal(ScopeSet{})
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))

	var fromList, fromString ScopeSet
	require.NoError(t, json.Unmarshal([]byte(`["a","b","a"]`), &fromList))
	require.NoError(t, json.Unmarshal([]byte(`"a b"`), &fromString))
	assert.Equal(t, fromList.Strings(), fromString.Strings())

	assert.Error(t, json.Unmarshal([]byte(`42`), &fromList))
}
