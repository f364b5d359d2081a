// Package flags provides feature flags read from the "flags" config map.
// Flags are read-only after initialization and unknown flags are off.
package flags

import (
	"maps"
	"slices"

	"github.com/zjrosen/lurchfeed/internal/log"
)

const (
	// FlagHistoryPersistence stores run history in SQLite. When off, history
	// lives in memory for the lifetime of the process.
	FlagHistoryPersistence = "history-persistence"

	// FlagStripTitleANSI removes escape sequences and control characters from
	// stream titles before they are printed.
	FlagStripTitleANSI = "strip-title-ansi"
)

// Defaults are the flag values written by `lurchfeed config init`.
func Defaults() map[string]bool {
	return map[string]bool{
		FlagHistoryPersistence: true,
		FlagStripTitleANSI:     true,
	}
}

// Registry holds feature flag state loaded from configuration.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from a config map. A nil map disables every flag.
func New(flags map[string]bool) *Registry {
	r := &Registry{flags: make(map[string]bool, len(flags))}
	maps.Copy(r.flags, flags)
	log.Debug(log.CatConfig, "feature flags initialized", "count", len(r.flags), "flags", r.Names())
	return r
}

// Enabled reports whether the named flag is on. Unknown flags and a nil
// registry report false.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	value, exists := r.flags[name]
	if !exists {
		log.Debug(log.CatConfig, "unknown flag accessed", "flag", name)
		return false
	}
	return value
}

// All returns a copy of all flags.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return map[string]bool{}
	}
	return maps.Clone(r.flags)
}

// Names returns the enabled flag names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	var names []string
	for name, on := range r.flags {
		if on {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
