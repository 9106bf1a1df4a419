package matching

import (
	"testing"
	"time"

	"github.com/smartbedmqtt/ble-bridge/types"
)

func TestScoreFreshSuccessBonus(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	stats := &types.ControllerStats{LastSuccessAt: now.Add(-time.Hour)}
	if got := Score(-60, stats, now); got != 0 {
		t.Fatalf("expected -60+60=0, got %d", got)
	}
}

func TestScoreStaleSuccessSmallerBonus(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	stats := &types.ControllerStats{LastSuccessAt: now.Add(-20 * time.Hour)}
	if got := Score(-60, stats, now); got != -35 {
		t.Fatalf("expected -60+25=-35, got %d", got)
	}
}

func TestScoreFailurePenaltyCapped(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	stats := &types.ControllerStats{ConsecutiveFailures: 10}
	if got := Score(0, stats, now); got != -90 {
		t.Fatalf("expected failure penalty capped at -90, got %d", got)
	}
}

func TestScoreLopsidedFailurePenalty(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	stats := &types.ControllerStats{Failures: 10, Successes: 2}
	if got := Score(0, stats, now); got != -15 {
		t.Fatalf("expected -15 lopsided penalty, got %d", got)
	}
}

func TestRankStickySelectionMovesPinnedFirst(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	statsByKey := map[string]*types.ControllerStats{
		"ctrl-a": {ConsecutiveFailures: 0},
		"ctrl-b": {ConsecutiveFailures: 0},
	}
	candidates := []Candidate{
		{ControllerKey: "ctrl-a", RSSI: -40},
		{ControllerKey: "ctrl-b", RSSI: -90},
	}
	ranked := Rank(candidates, func(k string) *types.ControllerStats { return statsByKey[k] }, "ctrl-b", now)
	if ranked[0].ControllerKey != "ctrl-b" {
		t.Fatalf("expected pinned ctrl-b first despite lower RSSI, got %+v", ranked)
	}
}

func TestRankIgnoresPinnedWithTooManyConsecutiveFailures(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	statsByKey := map[string]*types.ControllerStats{
		"ctrl-a": {ConsecutiveFailures: 0},
		"ctrl-b": {ConsecutiveFailures: 2},
	}
	candidates := []Candidate{
		{ControllerKey: "ctrl-a", RSSI: -30},
		{ControllerKey: "ctrl-b", RSSI: -90},
	}
	ranked := Rank(candidates, func(k string) *types.ControllerStats { return statsByKey[k] }, "ctrl-b", now)
	if ranked[0].ControllerKey != "ctrl-a" {
		t.Fatalf("expected sorted order (ctrl-a on top by score) when pinned controller has >=2 consecutive failures, got %+v", ranked)
	}
}
