// FILE: lixenwraith/forgeconfig/timing.go
package forgeconfig

import "time"

// Timing defaults for Watcher
const (
	MinPollInterval      = 100 * time.Millisecond // Hard floor for file stat polling
	DefaultDebounce      = 500 * time.Millisecond // File change coalescence period
	DefaultPollInterval  = time.Second            // Standard file monitoring frequency
	DefaultReloadTimeout = 5 * time.Second        // Maximum duration for one re-resolution
	DefaultMaxWatchers   = 100                    // Prevent resource exhaustion
)
