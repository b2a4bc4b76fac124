package gps

import (
	"RailscanGolang/internal/entity"
	"strconv"
	"strings"
)

// MatchToleranceSeconds is the widest gap between a frame timestamp and a
// fix that still counts as a match. The boundary is inclusive.
const MatchToleranceSeconds = 5

// FrameSecond extracts the integer timestamp embedded in a frame filename
// ("123.jpg" -> 123). Non-numeric prefixes yield no timestamp.
func FrameSecond(frameID string) (int, bool) {
	prefix, _, _ := strings.Cut(frameID, ".")
	second, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, false
	}
	return second, true
}

// Match resolves a frame to its GPS fix. An exact second match wins,
// first-in-order when seconds repeat. Failing that, the closest fix within
// MatchToleranceSeconds is taken, again first-in-order on distance ties.
func Match(frameID string, fixes []entity.GpsFix) (entity.GpsFix, bool) {
	second, ok := FrameSecond(frameID)
	if !ok {
		return entity.GpsFix{}, false
	}

	for _, fix := range fixes {
		if fix.Second == second {
			return fix, true
		}
	}

	if len(fixes) == 0 {
		return entity.GpsFix{}, false
	}

	best := fixes[0]
	bestDist := absInt(best.Second - second)
	for _, fix := range fixes[1:] {
		// strict less keeps the earliest fix on ties
		if d := absInt(fix.Second - second); d < bestDist {
			best = fix
			bestDist = d
		}
	}

	if bestDist <= MatchToleranceSeconds {
		return best, true
	}

	return entity.GpsFix{}, false
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
