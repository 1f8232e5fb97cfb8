package syndrome

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const syndromesYAML = `
syndromes:
  - id: 1
    code: WBS
    name: Williams-Beuren syndrome
    hpo: [316, 431, 316]
    genes: [{id: 7, code: ELN}]
  - id: 2
    code: NS
    name: Noonan syndrome
    hpo: [316]
    genes: [{id: 9, code: PTPN11}]
  - id: 3
    code: DS
    name: Down syndrome
    hpo: [601]
`

func load(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "syndromes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(syndromesYAML), 0o644))
	m, err := Load(path)
	require.NoError(t, err)
	return m
}

func TestLookups(t *testing.T) {
	m := load(t)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, []int{1, 2, 3}, m.IDs())
	assert.Equal(t, []string{"Down syndrome", "Noonan syndrome", "Williams-Beuren syndrome"}, m.Names())
	assert.Equal(t, []string{"DS", "NS", "WBS"}, m.Codes())
	assert.Equal(t, "ELN", m.Syndrome(1).Genes[0].Code)
	assert.Nil(t, m.Syndrome(4))
	assert.Equal(t, 2, m.ByName("noonan SYNDROME").ID)
	assert.Nil(t, m.ByName("unknown"))

	assert.Equal(t, []int{1, 2}, m.HPOSyndromes(316))
	assert.Equal(t, []int{2}, m.GeneSyndromes(9))
	assert.Empty(t, m.GeneSyndromes(100))
}

func TestForPhenotypes(t *testing.T) {
	m := load(t)
	got := m.ForPhenotypes([]int{431, 316, 999})
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Syndrome.ID)
	assert.Equal(t, []int{316, 431}, got[0].Shared)
	assert.Equal(t, 2, got[1].Syndrome.ID)
	assert.Empty(t, m.ForPhenotypes(nil))
}

func TestSaveRoundTrip(t *testing.T) {
	m := load(t)
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, m.Save(path))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.IDs(), again.IDs())
	assert.Equal(t, m.Syndrome(1), again.Syndrome(1))
}

func TestDuplicateID(t *testing.T) {
	_, err := NewManager([]Syndrome{{ID: 1}, {ID: 1}})
	assert.Error(t, err)
}
