package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in   string
		want Region
	}{
		{"mid", Mid},
		{"frontal", Mid},
		{"Left", Left},
		{"right-lateral", Right},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := ParseRegion(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r)
		})
	}

	_, err := ParseRegion("top")
	assert.Error(t, err)
}

func TestRegionOpposite(t *testing.T) {
	assert.Equal(t, Right, Left.Opposite())
	assert.Equal(t, Left, Right.Opposite())
	assert.Equal(t, Mid, Mid.Opposite())
	assert.True(t, Left.Lateral())
	assert.False(t, Mid.Lateral())
}

func TestParseSex(t *testing.T) {
	for in, want := range map[string]Sex{"F": Female, "m": Male, "MF": BothSexes, "fm": BothSexes, "": UnknownSex} {
		s, err := ParseSex(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, s, in)
	}
	_, err := ParseSex("X")
	assert.Error(t, err)

	assert.Equal(t, "MF", BothSexes.String())
	assert.True(t, BothSexes.Valid())
	assert.False(t, UnknownSex.Valid())
}
