package templates

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodmon/engine"
	"prodmon/kvstore"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	kv, err := kvstore.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return NewStore(kv)
}

func morningShift() Template {
	return Template{
		Name: "Morning Shift",
		ShiftInput: engine.ShiftInput{
			Line:              "SMT-1",
			Date:              "2026-08-31",
			PlanTarget:        103,
			AchievementFactor: 1.35,
			RequiredManpower:  16.33,
			ActualManpower:    16.33,
			StartTime:         "06:00",
			EndTime:           "18:00",
			BreakTime:         1.42,
		},
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save(morningShift()))

	got, found, err := s.Get("Morning Shift")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "SMT-1", got.Line)
	assert.Equal(t, 103.0, got.PlanTarget)
	assert.Empty(t, got.Date, "templates carry no date")
	assert.NotEmpty(t, got.CreatedAt)
}

func TestSaveOverwritesByName(t *testing.T) {
	s := openTestStore(t)

	first := morningShift()
	require.NoError(t, s.Save(first))

	second := morningShift()
	second.PlanTarget = 120
	require.NoError(t, s.Save(second))

	got, found, err := s.Get("Morning Shift")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 120.0, got.PlanTarget)

	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSaveRequiresName(t *testing.T) {
	s := openTestStore(t)
	tpl := morningShift()
	tpl.Name = "  "
	assert.Error(t, s.Save(tpl))
}

func TestListSortedByName(t *testing.T) {
	s := openTestStore(t)

	for _, name := range []string{"Night", "Day", "Weekend"} {
		tpl := morningShift()
		tpl.Name = name
		require.NoError(t, s.Save(tpl))
	}

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Day", list[0].Name)
	assert.Equal(t, "Night", list[1].Name)
	assert.Equal(t, "Weekend", list[2].Name)
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save(morningShift()))
	require.NoError(t, s.Delete("Morning Shift"))

	_, found, err := s.Get("Morning Shift")
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, s.Delete("never existed"))
}
