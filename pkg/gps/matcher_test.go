package gps

import (
	"RailscanGolang/internal/entity"
	"testing"

	"github.com/stretchr/testify/require"
)

func fixAt(second int, lat float64) entity.GpsFix {
	return entity.GpsFix{Second: second, Latitude: lat, Longitude: lat * 2, Accuracy: 5}
}

func TestFrameSecond(t *testing.T) {
	second, ok := FrameSecond("123.jpg")
	require.True(t, ok)
	require.Equal(t, 123, second)

	_, ok = FrameSecond("snapshot.jpg")
	require.False(t, ok)

	_, ok = FrameSecond("")
	require.False(t, ok)
}

func TestMatch_Exact(t *testing.T) {
	fixes := []entity.GpsFix{fixAt(10, 1.0), fixAt(20, 1.1)}

	fix, ok := Match("10.jpg", fixes)
	require.True(t, ok)
	require.Equal(t, fixes[0], fix)
}

func TestMatch_ExactDuplicateSecondsFirstWins(t *testing.T) {
	fixes := []entity.GpsFix{fixAt(10, 1.0), fixAt(10, 9.9)}

	fix, ok := Match("10.jpg", fixes)
	require.True(t, ok)
	require.Equal(t, 1.0, fix.Latitude)
}

func TestMatch_NearestWithinTolerance(t *testing.T) {
	fixes := []entity.GpsFix{fixAt(10, 1.0), fixAt(20, 1.1)}

	fix, ok := Match("23.jpg", fixes)
	require.True(t, ok)
	require.Equal(t, 20, fix.Second)
}

func TestMatch_NearestBeyondTolerance(t *testing.T) {
	fixes := []entity.GpsFix{fixAt(10, 1.0), fixAt(20, 1.1)}

	_, ok := Match("30.jpg", fixes)
	require.False(t, ok)
}

func TestMatch_ToleranceBoundaryInclusive(t *testing.T) {
	fixes := []entity.GpsFix{fixAt(10, 1.0)}

	fix, ok := Match("15.jpg", fixes)
	require.True(t, ok)
	require.Equal(t, 10, fix.Second)

	_, ok = Match("16.jpg", fixes)
	require.False(t, ok)
}

func TestMatch_TieBreakKeepsFirstInOrder(t *testing.T) {
	// 13 is equidistant from 10 and 16; the earlier fix must win,
	// mirroring a stable ascending sort by distance.
	fixes := []entity.GpsFix{fixAt(10, 1.0), fixAt(16, 2.0)}

	fix, ok := Match("13.jpg", fixes)
	require.True(t, ok)
	require.Equal(t, 10, fix.Second)

	reversed := []entity.GpsFix{fixAt(16, 2.0), fixAt(10, 1.0)}
	fix, ok = Match("13.jpg", reversed)
	require.True(t, ok)
	require.Equal(t, 16, fix.Second)
}

func TestMatch_NoFixes(t *testing.T) {
	_, ok := Match("10.jpg", nil)
	require.False(t, ok)
}

func TestMatch_NonNumericFrameID(t *testing.T) {
	fixes := []entity.GpsFix{fixAt(10, 1.0)}

	_, ok := Match("frame.jpg", fixes)
	require.False(t, ok)
}
