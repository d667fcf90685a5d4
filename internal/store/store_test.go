package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	Name    string             `json:"name"`
	Count   int                `json:"count"`
	When    time.Time          `json:"when"`
	Samples map[string]float64 `json:"samples"`
}

func TestMemory_RoundTrip(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	in := testDoc{
		Name:  "squeeze:state",
		Count: 3,
		When:  time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC),
		Samples: map[string]float64{
			"SPY": -350e6,
			"QQQ": 120e6,
		},
	}
	require.NoError(t, st.Set(ctx, "doc", in))

	var out testDoc
	require.NoError(t, st.Get(ctx, "doc", &out))
	assert.Equal(t, in, out)
}

func TestMemory_GetMissingKey(t *testing.T) {
	st := NewMemory()
	var out testDoc
	err := st.Get(context.Background(), "nope", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_DeleteIsIdempotent(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "doc", testDoc{Name: "x"}))
	require.NoError(t, st.Delete(ctx, "doc"))
	require.NoError(t, st.Delete(ctx, "doc"))

	var out testDoc
	assert.ErrorIs(t, st.Get(ctx, "doc", &out), ErrNotFound)
}

func TestMemory_OverwriteReplaces(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "doc", testDoc{Name: "first", Count: 1}))
	require.NoError(t, st.Set(ctx, "doc", testDoc{Name: "second", Count: 2}))

	var out testDoc
	require.NoError(t, st.Get(ctx, "doc", &out))
	assert.Equal(t, "second", out.Name)
	assert.Equal(t, 2, out.Count)
}

func TestCodec_CompressesLargeDocuments(t *testing.T) {
	big := make(map[string][]float64)
	series := make([]float64, 2000)
	for i := range series {
		series[i] = 590.0
	}
	big["series"] = series

	data, err := marshalDoc(big)
	require.NoError(t, err)

	var out map[string][]float64
	require.NoError(t, unmarshalDoc(data, &out))
	assert.Len(t, out["series"], 2000)

	// Highly repetitive JSON should shrink substantially.
	assert.Less(t, len(data), 2000)
}
