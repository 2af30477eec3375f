package repl

import (
	"fmt"
	"time"
)

// ResourceConfig bounds what the REPL subprocess may consume. Enforced via
// Python's resource.setrlimit() once at bootstrap-script startup, so the
// limits apply to the whole process, not to each execute() call.
type ResourceConfig struct {
	// MemoryLimitMB is the maximum address-space size (RLIMIT_AS) in
	// megabytes.
	MemoryLimitMB int
	// CPUTimeLimitSec is the maximum CPU time (RLIMIT_CPU) of the
	// subprocess, accumulated across every execute() call.
	CPUTimeLimitSec int
}

// DefaultResourceConfig returns sensible defaults for a single agent's
// subprocess.
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{
		MemoryLimitMB:   1024,
		CPUTimeLimitSec: 60,
	}
}

// SandboxConfig describes the REPL subprocess's limits: the filesystem
// paths it may read, the one path it may write to, whether outbound
// network access is permitted, the wall-clock timeout applied while
// waiting on the subprocess, and its resource limits. Only Timeout and
// Resources take effect; ReadPaths, WritePath and NetworkEnabled are not
// enforced by the bootstrap script.
type SandboxConfig struct {
	ReadPaths      []string
	WritePath      string
	NetworkEnabled bool
	Timeout        time.Duration
	Resources      ResourceConfig
}

// DefaultSandboxConfig returns the default sandbox: the working directory
// as the only read path, no write path, network disabled, a 30s per-call
// timeout.
func DefaultSandboxConfig() SandboxConfig {
	return SandboxConfig{
		ReadPaths:      []string{"."},
		NetworkEnabled: false,
		Timeout:        30 * time.Second,
		Resources:      DefaultResourceConfig(),
	}
}

// Validate fills in zero-valued fields with their defaults rather than
// rejecting the config outright, since a caller-supplied SandboxConfig
// often only wants to override one field.
func (c *SandboxConfig) Validate() error {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Resources.MemoryLimitMB <= 0 {
		c.Resources.MemoryLimitMB = 1024
	}
	if c.Resources.CPUTimeLimitSec <= 0 {
		c.Resources.CPUTimeLimitSec = 60
	}
	return nil
}

// ToEnv converts the sandbox config to environment variables for the
// subprocess. The embedded bootstrap script reads RLM_MEMORY_LIMIT_MB and
// RLM_CPU_LIMIT_SEC at startup to install its resource limits;
// RLM_SANDBOX and RLM_NETWORK are exported but not acted on.
func (c *SandboxConfig) ToEnv() []string {
	env := []string{"RLM_SANDBOX=1"}
	if c.NetworkEnabled {
		env = append(env, "RLM_NETWORK=1")
	}
	env = append(env,
		fmt.Sprintf("RLM_MEMORY_LIMIT_MB=%d", c.Resources.MemoryLimitMB),
		fmt.Sprintf("RLM_CPU_LIMIT_SEC=%d", c.Resources.CPUTimeLimitSec),
	)
	return env
}
