// Package tutil holds helpers shared by tests.
package tutil

import (
	"os"
	"strings"
)

// IsIntegrationTest reports whether tests that need outside services, such as
// a redis server, should run. They run when XFER_TEST is "integration".
func IsIntegrationTest() bool {
	testType := os.Getenv("XFER_TEST")
	return strings.ToLower(testType) == "integration"
}

// RedisAddr is the redis server integration tests use, localhost:6379 unless
// XFER_TEST_REDIS_ADDR is set.
func RedisAddr() string {
	if addr := os.Getenv("XFER_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}

	return "localhost:6379"
}
