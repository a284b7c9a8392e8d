package config

import "testing"

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	t.Setenv("CLASSIFY_CALIBRATION_CONSTANT", "")
	t.Setenv("DEDUP_TEXT_WEIGHT", "")
	t.Setenv("NATS_STAGED_SUBJECT", "")

	cfg := Load()
	if cfg.ClassifyCalibrationConstant != 10 {
		t.Fatalf("expected default calibration constant 10, got %f", cfg.ClassifyCalibrationConstant)
	}
	if cfg.DedupTextWeight != 0.6 {
		t.Fatalf("expected default text weight 0.6, got %f", cfg.DedupTextWeight)
	}
	if cfg.NATSStagedSubject != "documents.staged" {
		t.Fatalf("expected default staged subject, got %q", cfg.NATSStagedSubject)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CLASSIFY_CALIBRATION_CONSTANT", "15")
	t.Setenv("DEDUP_SIMILAR_THRESHOLD", "0.8")
	t.Setenv("API_RATE_LIMIT_RPS", "25")

	cfg := Load()
	if cfg.ClassifyCalibrationConstant != 15 {
		t.Fatalf("expected calibration override, got %f", cfg.ClassifyCalibrationConstant)
	}
	if cfg.DedupSimilarThreshold != 0.8 {
		t.Fatalf("expected similar threshold override, got %f", cfg.DedupSimilarThreshold)
	}
	if cfg.APIRateLimitRPS != 25 {
		t.Fatalf("expected rate limit override, got %f", cfg.APIRateLimitRPS)
	}
}

func TestLoadFallsBackOnBadNumbers(t *testing.T) {
	t.Setenv("DEDUP_TEXT_WEIGHT", "not-a-number")
	t.Setenv("API_RATE_LIMIT_BURST", "garbage")

	cfg := Load()
	if cfg.DedupTextWeight != 0.6 {
		t.Fatalf("expected fallback text weight, got %f", cfg.DedupTextWeight)
	}
	if cfg.APIRateLimitBurst != 10 {
		t.Fatalf("expected fallback burst, got %d", cfg.APIRateLimitBurst)
	}
}
