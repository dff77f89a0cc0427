package rangeassign_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dra "github.com/d-krupke/drone-range-assignment"
)

func TestGetPairIndexIsBijective(t *testing.T) {
	for _, n := range []int{2, 3, 5, 8} {
		seen := make(map[int]bool)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				k := dra.GetPairIndex(i, j, n)
				assert.Equal(t, k, dra.GetPairIndex(j, i, n), "pair index must be symmetric")
				assert.GreaterOrEqual(t, k, 0)
				assert.Less(t, k, n*(n-1)/2)
				assert.False(t, seen[k], "index %d used twice for n=%d", k, n)
				seen[k] = true
			}
		}
		assert.Len(t, seen, n*(n-1)/2)
	}
}

func TestGetArcIndexIsBijective(t *testing.T) {
	for _, n := range []int{2, 3, 6} {
		seen := make(map[int]bool)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				k := dra.GetArcIndex(i, j, n)
				assert.GreaterOrEqual(t, k, 0)
				assert.Less(t, k, n*(n-1))
				assert.False(t, seen[k], "index %d used twice for n=%d", k, n)
				seen[k] = true
			}
		}
		assert.Len(t, seen, n*(n-1))
	}
	assert.NotEqual(t, dra.GetArcIndex(0, 1, 3), dra.GetArcIndex(1, 0, 3))
}

func TestSanitizeJsonArrayLineBreaks(t *testing.T) {
	raw, err := json.MarshalIndent(map[string][]float64{"a": {1.5, -2, 3}}, "", "\t")
	require.NoError(t, err)
	assert.Equal(t, "{\n\t\"a\": [1.5,-2,3]\n}", dra.SanitizeJsonArrayLineBreaks(string(raw)))

	var back map[string][]float64
	require.NoError(t, json.Unmarshal([]byte(dra.SanitizeJsonArrayLineBreaks(string(raw))), &back))
	assert.Equal(t, []float64{1.5, -2, 3}, back["a"])
}

func TestFormatArcMatrix(t *testing.T) {
	assert.Equal(t, "0,1,\n1,0,\n", dra.FormatArcMatrix([][]int{{0, 1}, {1, 0}}))
}
