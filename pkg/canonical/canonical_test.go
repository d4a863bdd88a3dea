package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeysAtEveryLevel(t *testing.T) {
	a := map[string]any{
		"zeta":  1,
		"alpha": map[string]any{"y": true, "x": false},
	}
	b := map[string]any{
		"alpha": map[string]any{"x": false, "y": true},
		"zeta":  1,
	}

	outA, err := Marshal(a)
	require.NoError(t, err)
	outB, err := Marshal(b)
	require.NoError(t, err)

	assert.Equal(t, outA, outB)
	assert.Equal(t, `{"alpha":{"x":false,"y":true},"zeta":1}`, outA)
}

func TestMarshalPreservesArrayOrder(t *testing.T) {
	out, err := Marshal(map[string]any{
		"actions": []string{"TRAIN", "SCRAPE"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"actions":["TRAIN","SCRAPE"]}`, out)
}

func TestMarshalHandlesNestedObjectsInArrays(t *testing.T) {
	out, err := Marshal(map[string]any{
		"rows": []any{
			map[string]any{"b": 2, "a": 1},
			nil,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"rows":[{"a":1,"b":2},null]}`, out)
}

func TestMarshalStructMatchesEquivalentMap(t *testing.T) {
	type payload struct {
		Domain string `json:"domain"`
		Owner  string `json:"owner"`
		Token  string `json:"token"`
	}

	fromStruct, err := Marshal(payload{Domain: "example.com", Owner: "0xAb", Token: "scrapesafe-1"})
	require.NoError(t, err)

	fromMap, err := Marshal(map[string]any{
		"token":  "scrapesafe-1",
		"domain": "example.com",
		"owner":  "0xAb",
	})
	require.NoError(t, err)

	assert.Equal(t, fromStruct, fromMap)
}

func TestMarshalKeepsNumericLiteralsExact(t *testing.T) {
	out, err := Marshal(map[string]any{"price": 50, "rate": 0.1})
	require.NoError(t, err)
	assert.Equal(t, `{"price":50,"rate":0.1}`, out)
}

func TestMarshalDoesNotEscapeURLs(t *testing.T) {
	out, err := Marshal(map[string]any{"uri": "https://example.com/terms?a=1&b=2"})
	require.NoError(t, err)
	assert.Equal(t, `{"uri":"https://example.com/terms?a=1&b=2"}`, out)
}

func TestMarshalDoesNotMutateInput(t *testing.T) {
	in := map[string]any{"b": 2, "a": []any{map[string]any{"k": "v"}}}
	_, err := Marshal(in)
	require.NoError(t, err)

	assert.Equal(t, 2, in["b"])
	assert.Len(t, in["a"], 1)
}
