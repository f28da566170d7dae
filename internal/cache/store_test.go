package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "cloudscape.cache.account_a1.subscriptions", GenerateKey("account_a1.subscriptions"))

	// Deterministic: same id, same key.
	assert.Equal(t, GenerateKey("account_a1.dataresources"), GenerateKey("account_a1.dataresources"))
}

func TestMemoryStore_GetSet(t *testing.T) {
	s := NewMemoryStore()

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("k", []byte("v1")))
	got, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	// Overwriting a key fully replaces its value.
	require.NoError(t, s.Set("k", []byte("v2")))
	got, ok, err = s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), got)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()

	in := []byte("original")
	require.NoError(t, s.Set("k", in))
	in[0] = 'X'

	got, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("original"), got)

	// Mutating the returned slice must not affect the stored value.
	got[0] = 'Y'
	again, _, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestJSONHelpers(t *testing.T) {
	type entry struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	s := NewMemoryStore()

	var out entry
	ok, err := GetJSON(s, "missing", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetJSON(s, "k", entry{Name: "one", Count: 1}))
	ok, err = GetJSON(s, "k", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry{Name: "one", Count: 1}, out)

	// Whole-value replacement, no field-level merge.
	require.NoError(t, SetJSON(s, "k", entry{Name: "two"}))
	out = entry{}
	ok, err = GetJSON(s, "k", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry{Name: "two", Count: 0}, out)
}

func TestGetJSON_DecodeError(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set("k", []byte("not json")))

	var out map[string]any
	_, err := GetJSON(s, "k", &out)
	assert.Error(t, err)
}
