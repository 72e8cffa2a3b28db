package tuning

import (
	"runtime/debug"
)

// Config holds the runtime settings applied at CLI startup.
type Config struct {
	GCPercent   int
	MemoryLimit int64
}

const minMemoryLimit = 64 * 1024 * 1024

// DefaultConfig caps the heap at a quarter of system memory. Benchmarks
// allocate little per request, so the default GC percent is kept.
func DefaultConfig() Config {
	return configFor(SystemMemory())
}

func configFor(total uint64) Config {
	limit := int64(total / 4)
	if limit < minMemoryLimit {
		limit = minMemoryLimit
	}
	return Config{
		GCPercent:   100,
		MemoryLimit: limit,
	}
}

// Apply installs cfg. Zero fields leave the runtime defaults alone.
func Apply(cfg Config) {
	if cfg.GCPercent > 0 {
		debug.SetGCPercent(cfg.GCPercent)
	}
	if cfg.MemoryLimit > 0 {
		debug.SetMemoryLimit(cfg.MemoryLimit)
	}
}

// SystemMemory returns total physical memory in bytes, or 1GiB when the
// platform cannot report it.
func SystemMemory() uint64 {
	if total := systemMemory(); total > 0 {
		return total
	}
	return fallbackMemory
}

const fallbackMemory = 1024 * 1024 * 1024
