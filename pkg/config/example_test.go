package config_test

import (
	"fmt"

	"github.com/shayan-nathan/airbyte/pkg/config"
)

func ExampleNewBaseConfig() {
	cfg := config.NewBaseConfig("notion", "notion")

	fmt.Printf("Attempts: %d\n", cfg.Reliability.RetryAttempts)
	fmt.Printf("Backoff factor: %s\n", cfg.Reliability.RetryDelay)
	fmt.Printf("Rate limit: %d req/s\n", cfg.Reliability.RateLimitPerSec)

	// Output:
	// Attempts: 6
	// Backoff factor: 8s
	// Rate limit: 3 req/s
}

func ExampleSecurityConfig_Credential() {
	cfg := config.NewBaseConfig("notion", "notion")
	cfg.Security.SetCredential("token", "secret_abc")

	fmt.Println(cfg.Security.Credential("token", ""))
	fmt.Println(cfg.Security.Credential("max_block_depth", "30"))

	// Output:
	// secret_abc
	// 30
}
