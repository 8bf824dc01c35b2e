package idhash

import "testing"

func TestComputeRecommendationID_Deterministic(t *testing.T) {
	a := ComputeRecommendationID("run1", "AAPL", "buy")
	b := ComputeRecommendationID("run1", "AAPL", "buy")
	if a != b {
		t.Errorf("IDs differ for identical inputs: %s vs %s", a, b)
	}
}

func TestComputeRecommendationID_UniquePerRun(t *testing.T) {
	a := ComputeRecommendationID("run1", "AAPL", "buy")
	b := ComputeRecommendationID("run2", "AAPL", "buy")
	if a == b {
		t.Error("IDs collide across runs")
	}

	c := ComputeRecommendationID("run1", "MSFT", "buy")
	if a == c {
		t.Error("IDs collide across instruments")
	}
}

func TestComputeDatapointID_Deterministic(t *testing.T) {
	a := ComputeDatapointID("agent1", "run1", 1000)
	b := ComputeDatapointID("agent1", "run1", 1000)
	if a != b {
		t.Errorf("IDs differ for identical inputs: %s vs %s", a, b)
	}
	if ComputeDatapointID("agent1", "run1", 2000) == a {
		t.Error("IDs collide across timestamps")
	}
}
