package matching

import (
	"sort"
	"time"

	"github.com/smartbedmqtt/ble-bridge/types"
)

// Candidate is one advertisement matched to a BedConfig, paired with
// the controller key (friendly name, typically) used to look up its
// persisted stats.
type Candidate struct {
	ControllerKey string
	Address       uint64
	ProxyHost     string
	RSSI          int
}

// Scored is a Candidate plus its computed failover score, highest
// first after Rank.
type Scored struct {
	Candidate
	Score int
}

// Score computes the failover ranking score for one candidate per
// spec.md §4.3:
//
//	score = rssi + success_recency_bonus − failure_penalty − recent_hourly_penalty
func Score(rssi int, stats *types.ControllerStats, now time.Time) int {
	score := rssi

	switch {
	case !stats.LastSuccessAt.IsZero() && now.Sub(stats.LastSuccessAt) <= 6*time.Hour:
		score += 60
	case !stats.LastSuccessAt.IsZero() && now.Sub(stats.LastSuccessAt) <= 24*time.Hour:
		score += 25
	}

	failurePenalty := 30 * stats.ConsecutiveFailures
	if failurePenalty > 90 {
		failurePenalty = 90
	}
	score -= failurePenalty

	if stats.Failures-stats.Successes > 2 {
		score -= 15
	}

	hourlyPenalty := 10 * stats.FailuresLastHour(now)
	if hourlyPenalty > 40 {
		hourlyPenalty = 40
	}
	score -= hourlyPenalty

	return score
}

// Rank scores every candidate against its stats (looked up via
// statsFor), sorts highest-score-first, and then applies sticky
// selection: if pinnedKey names a candidate whose ConsecutiveFailures
// is below 2, it is moved to the front regardless of score.
func Rank(candidates []Candidate, statsFor func(controllerKey string) *types.ControllerStats, pinnedKey string, now time.Time) []Scored {
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		stats := statsFor(c.ControllerKey)
		scored = append(scored, Scored{Candidate: c, Score: Score(c.RSSI, stats, now)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if pinnedKey == "" {
		return scored
	}

	pinnedStats := statsFor(pinnedKey)
	if pinnedStats.ConsecutiveFailures >= 2 {
		return scored
	}

	for i, s := range scored {
		if s.ControllerKey == pinnedKey {
			if i == 0 {
				return scored
			}
			reordered := make([]Scored, 0, len(scored))
			reordered = append(reordered, s)
			reordered = append(reordered, scored[:i]...)
			reordered = append(reordered, scored[i+1:]...)
			return reordered
		}
	}
	return scored
}
