package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string  `json:"name"`
	Ranks [][]int `json:"ranks"`
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}
	_, ok := ByName("gob")
	assert.False(t, ok)
}

func TestJSONCodecsInteroperate(t *testing.T) {
	in := doc{Name: "run", Ranks: [][]int{{1, 3}, nil, {2}}}

	a, err := JSON{}.Marshal(in)
	require.NoError(t, err)
	b, err := GoJSON{}.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
	assert.Contains(t, string(b), `"ranks":[[1,3],null,[2]]`)

	var out doc
	require.NoError(t, JSON{}.Unmarshal(b, &out))
	assert.Equal(t, in, out)

	out = doc{}
	require.NoError(t, GoJSON{}.Unmarshal(a, &out))
	assert.Equal(t, in, out)
}

func TestMustMarshal(t *testing.T) {
	assert.JSONEq(t, `{"name":"x","ranks":null}`, string(MustMarshal(nil, doc{Name: "x"})))
	assert.Panics(t, func() { MustMarshal(JSON{}, make(chan int)) })
}
