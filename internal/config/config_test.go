package config

import "testing"

func TestProbeTierOverride(t *testing.T) {
	t.Setenv("DEVICE_TIER", "constrained")
	if got := ProbeTier(); got != TierConstrained {
		t.Errorf("Expected constrained override, got %v", got)
	}

	t.Setenv("DEVICE_TIER", "capable")
	if got := ProbeTier(); got != TierCapable {
		t.Errorf("Expected capable override, got %v", got)
	}
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("BRIDGE_URL", "")
	t.Setenv("TARGET_LABEL", "")
	if got := BridgeURL(); got != DefaultBridgeURL {
		t.Errorf("Expected default bridge URL, got %q", got)
	}
	if got := TargetLabel(); got != DefaultTargetLabel {
		t.Errorf("Expected default target label, got %q", got)
	}

	t.Setenv("TARGET_LABEL", "couch")
	if got := TargetLabel(); got != "couch" {
		t.Errorf("Expected env target label, got %q", got)
	}
}
