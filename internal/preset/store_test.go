package preset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steadyshot/stabilizer/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "presets"))
	require.NoError(t, err)
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	p := config.DefaultParams()
	p.SmoothingRadius = 45
	p.MaxCorrection = 33.5
	p.UseHarris = true

	require.True(t, s.Save("handheld", "walking footage", p))

	got, ok := s.Load("handheld")
	require.True(t, ok)
	assert.Equal(t, "handheld", got.Name)
	assert.Equal(t, "walking footage", got.Description)
	assert.NotZero(t, got.UpdatedAt)
	if diff := cmp.Diff(config.Sanitize(p), got.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveEmptyNameFails(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.Save("", "", config.DefaultParams()))
	assert.Empty(t, s.List())
}

func TestSaveRejectsPathEscapes(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.Save("../escape", "", config.DefaultParams()))
	assert.False(t, s.Save("a/b", "", config.DefaultParams()))
	assert.False(t, s.Save(".hidden", "", config.DefaultParams()))
}

func TestOperationsOnUnsavedName(t *testing.T) {
	s := newTestStore(t)
	_, ok := s.Load("missing")
	assert.False(t, ok)
	assert.False(t, s.Delete("missing"))
	assert.False(t, s.Exists("missing"))
}

func TestResaveReplacesContent(t *testing.T) {
	s := newTestStore(t)

	p1 := config.DefaultParams()
	p1.SmoothingRadius = 10
	require.True(t, s.Save("tripod", "first", p1))

	p2 := config.DefaultParams()
	p2.SmoothingRadius = 90
	require.True(t, s.Save("tripod", "second", p2))

	got, ok := s.Load("tripod")
	require.True(t, ok)
	assert.Equal(t, 90, got.Params.SmoothingRadius)
	assert.Equal(t, "second", got.Description)
	assert.Equal(t, []string{"tripod"}, s.List())
}

func TestListSortedAndDelete(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"zoom", "action", "mellow"} {
		require.True(t, s.Save(name, "", config.DefaultParams()))
	}
	assert.Equal(t, []string{"action", "mellow", "zoom"}, s.List())

	assert.True(t, s.Exists("mellow"))
	assert.True(t, s.Delete("mellow"))
	assert.False(t, s.Exists("mellow"))
	assert.Equal(t, []string{"action", "zoom"}, s.List())
}

func TestNoPartialFileAfterSave(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.Save("steady", "", config.DefaultParams()))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "steady.json", entries[0].Name())
}
