// Package testutil gates tests that need a container runtime.
package testutil

import (
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// IntegrationEnv opts into container-backed tests on CI runners.
const IntegrationEnv = "DOCQUERY_INTEGRATION_TESTS"

// RequireContainers skips t when store tests cannot start their containers:
// in -short mode, on CI without IntegrationEnv, or when no Docker provider answers.
func RequireContainers(t *testing.T) {
	t.Helper()
	if reason, skip := containerSkipReason(testing.Short(), os.Getenv); skip {
		t.Skip(reason)
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

func containerSkipReason(short bool, getenv func(string) string) (string, bool) {
	if short {
		return "container test skipped in short mode", true
	}
	if getenv("CI") != "" && getenv(IntegrationEnv) == "" {
		return "container test skipped on CI (set " + IntegrationEnv + "=1 to run)", true
	}
	return "", false
}
