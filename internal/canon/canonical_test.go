package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"null", nil, "null"},
		{"string", "hello", `"hello"`},
		{"int", 42, "42"},
		{"negative", -7, "-7"},
		{"integral float", 3.0, "3"},
		{"fraction", 0.25, "0.25"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"sorted keys", map[string]any{"zebra": 1, "alpha": 2, "beta": 3}, `{"alpha":2,"beta":3,"zebra":1}`},
		{"nested", map[string]any{"z": map[string]any{"b": 1, "a": nil}, "a": []any{"x", 1.5}}, `{"a":["x",1.5],"z":{"a":null,"b":1}}`},
		{"no html escaping", "<a & b>", `"<a & b>"`},
		{"control chars escaped", "line\nbreak\t", `"line\nbreak\t"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))
		})
	}
}

func TestMarshal_Struct(t *testing.T) {
	type finding struct {
		Category  string  `json:"category"`
		EventRefs []int64 `json:"event_refs"`
	}
	out, err := Marshal(finding{Category: "looping_or_doom_edits", EventRefs: []int64{3, 1}})
	require.NoError(t, err)
	assert.Equal(t, `{"category":"looping_or_doom_edits","event_refs":[3,1]}`, string(out))
}

func TestMarshal_NFC(t *testing.T) {
	// e + combining acute normalizes to the precomposed form.
	decomposed, err := Marshal("e\u0301")
	require.NoError(t, err)
	composed, err := Marshal("\u00e9")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)

	keys, err := Marshal(map[string]any{"e\u0301": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\"\u00e9\":1}", string(keys))
}

func TestMarshal_LineSeparators(t *testing.T) {
	out, err := Marshal("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(out))

	literal, err := Marshal(`a\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028"`, string(literal))
}

func TestMarshal_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as surrogates D83D DE00, which sort before U+FB01 in
	// UTF-16 even though the UTF-8 bytes sort after.
	out, err := Marshal(map[string]any{"\uFB01": 1, "\U0001F600": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uFB01\":1}", string(out))
}

func TestMarshal_Unsupported(t *testing.T) {
	_, err := Marshal(make(chan int))
	require.Error(t, err)
}

func TestDigest(t *testing.T) {
	a := map[string]any{"b": 1, "a": []any{"x"}}
	b := map[string]any{"a": []any{"x"}, "b": 1.0}
	digest := func(domain string, v any) string {
		d, err := Digest(domain, v)
		require.NoError(t, err)
		return d
	}

	da := digest(DomainReport, a)
	assert.Len(t, da, 64)
	assert.Equal(t, da, digest(DomainReport, b))

	assert.NotEqual(t, da, digest(DomainBatch, a))
	assert.NotEqual(t, da, digest(DomainReport, map[string]any{"b": 2, "a": []any{"x"}}))
}

func TestHashWithDomain_Separator(t *testing.T) {
	// Without the separator these two would hash the same bytes.
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}
