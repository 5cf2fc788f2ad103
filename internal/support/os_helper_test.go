package support

import (
	"testing"
	"time"
)

func TestGetEnvFallbacks(t *testing.T) {
	if got := GetEnv("GATEKEEPER_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("GetEnv fallback = %q", got)
	}

	t.Setenv("GATEKEEPER_TEST_STR", "value")
	if got := GetEnv("GATEKEEPER_TEST_STR", "fallback"); got != "value" {
		t.Fatalf("GetEnv set = %q", got)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("GATEKEEPER_TEST_INT", "42")
	if got := GetEnvInt("GATEKEEPER_TEST_INT", 7); got != 42 {
		t.Fatalf("GetEnvInt set = %d", got)
	}

	t.Setenv("GATEKEEPER_TEST_INT", "not a number")
	if got := GetEnvInt("GATEKEEPER_TEST_INT", 7); got != 7 {
		t.Fatalf("GetEnvInt garbage = %d, want fallback", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("GATEKEEPER_TEST_DUR", "90s")
	if got := GetEnvDuration("GATEKEEPER_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Fatalf("GetEnvDuration set = %v", got)
	}

	t.Setenv("GATEKEEPER_TEST_DUR", "soon")
	if got := GetEnvDuration("GATEKEEPER_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("GetEnvDuration garbage = %v, want fallback", got)
	}
}
