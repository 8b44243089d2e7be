package descriptor

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gapgo/structure"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseSpeciesMode(t *testing.T) {
	sl, err := ParseSpeciesMode("environment wise")
	require.NoError(t, err)
	assert.Equal(t, SpeciesEnvironmentWise, sl.Mode)

	sl, err = ParseSpeciesMode("structure wise")
	require.NoError(t, err)
	assert.Equal(t, SpeciesStructureWise, sl.Mode)

	_, err = ParseSpeciesMode("per atom")
	var ime *InvalidSpeciesModeError
	assert.ErrorAs(t, err, &ime)
}

func TestUserDefinedCheck(t *testing.T) {
	structures := []*structure.Structure{
		{Positions: [][3]float64{{0, 0, 0}, {1, 0, 0}}, Species: []int{1, 2}},
		{Positions: [][3]float64{{0, 0, 0}}, Species: []int{3}},
	}

	require.NoError(t, UserDefined(1, 2, 3).Check(structures))
	require.NoError(t, UserDefined(1, 2, 3, 26).Check(structures), "extra species in the list are allowed")
	require.NoError(t, EnvironmentWise().Check(structures))

	err := UserDefined(1, 2).Check(structures)
	var snl *SpeciesNotInListError
	require.ErrorAs(t, err, &snl)
	assert.Equal(t, 3, snl.Species)
	assert.Equal(t, []int{1, 2}, snl.List)
}

func TestLegacySpeciesMigration(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		global  []int
		want    SpeciesList
		wantErr bool
	}{
		{
			name:   "mode string carried over",
			method: "structure wise",
			want:   StructureWise(),
		},
		{
			name:   "user defined with list",
			method: "user defined",
			global: []int{1, 8},
			want:   UserDefined(1, 8),
		},
		{
			name:    "user defined without list",
			method:  "user defined",
			wantErr: true,
		},
		{
			name:   "global species alone implies user defined",
			global: []int{6},
			want:   UserDefined(6),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := migrateLegacySpecies(tt.method, tt.global, discardLogger())
			if tt.wantErr {
				require.ErrorIs(t, err, ErrLegacySpeciesIncomplete)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewWithLegacyParameters(t *testing.T) {
	s, err := New(3.5, 0.5, 2, 1, func(o *Options) {
		o.ExpansionBySpeciesMethod = "user defined"
		o.GlobalSpecies = []int{1, 2}
		o.Logger = discardLogger()
	})
	require.NoError(t, err)
	assert.Equal(t, UserDefined(1, 2), s.Species())

	_, err = New(3.5, 0.5, 2, 1, func(o *Options) {
		o.ExpansionBySpeciesMethod = "user defined"
		o.Logger = discardLogger()
	})
	assert.ErrorIs(t, err, ErrLegacySpeciesIncomplete)
}
