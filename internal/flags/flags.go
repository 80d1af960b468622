package flags

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Flag feature flag key
type Flag string

const (
	// RecomputeEnabled kill switch for batch and single recompute
	RecomputeEnabled Flag = "recompute_enabled"
	ForecastEnabled  Flag = "forecast_enabled"
	ChangeLogEnabled Flag = "changelog_enabled"
	// LaunchMode excludes demo/seed records from public rankings
	LaunchMode Flag = "launch_mode"
)

// FailMode value used when a flag cannot be read
type FailMode string

const (
	// FailOpen unreadable flag resolves to its default
	FailOpen FailMode = "open"
	// FailClosed unreadable flag resolves to its restrictive value
	FailClosed FailMode = "closed"
)

// Definition one row of the flag table
type Definition struct {
	Flag     Flag
	Default  bool
	FailMode FailMode
	// Restrictive value that minimises public exposure
	Restrictive bool
}

// Fallback value used when the provider errors
func (d Definition) Fallback() bool {
	if d.FailMode == FailClosed {
		return d.Restrictive
	}
	return d.Default
}

// Definitions ⭐ SSOT: 플래그 목록/기본값/실패 모드는 여기서만
var Definitions = []Definition{
	{Flag: RecomputeEnabled, Default: true, FailMode: FailOpen, Restrictive: false},
	{Flag: ForecastEnabled, Default: true, FailMode: FailOpen, Restrictive: false},
	{Flag: ChangeLogEnabled, Default: true, FailMode: FailOpen, Restrictive: false},
	{Flag: LaunchMode, Default: true, FailMode: FailClosed, Restrictive: true},
}

// Lookup returns the definition of f
func Lookup(f Flag) (Definition, bool) {
	for _, d := range Definitions {
		if d.Flag == f {
			return d, true
		}
	}
	return Definition{}, false
}

// Provider resolves the current flag values.
// Snapshot never fails; read errors resolve per FailMode.
type Provider interface {
	Snapshot(ctx context.Context) Snapshot
}

// Snapshot immutable set of flag values read once per run
type Snapshot struct {
	values map[Flag]bool
}

// NewSnapshot builds a snapshot from overrides on top of defaults.
// Unknown keys are ignored.
func NewSnapshot(overrides map[Flag]bool) Snapshot {
	values := make(map[Flag]bool, len(Definitions))
	for _, d := range Definitions {
		values[d.Flag] = d.Default
		if v, ok := overrides[d.Flag]; ok {
			values[d.Flag] = v
		}
	}
	return Snapshot{values: values}
}

// Defaults snapshot of default values
func Defaults() Snapshot {
	return NewSnapshot(nil)
}

// FallbacksFrom snapshot used when the backing store is unreachable:
// fail-open flags keep their base value, fail-closed flags take the restrictive value
func FallbacksFrom(base Snapshot) Snapshot {
	values := make(map[Flag]bool, len(Definitions))
	for _, d := range Definitions {
		values[d.Flag] = d.fallbackFrom(base)
	}
	return Snapshot{values: values}
}

func (d Definition) fallbackFrom(base Snapshot) bool {
	if d.FailMode == FailClosed {
		return d.Restrictive
	}
	return base.Enabled(d.Flag)
}

// Enabled reports the value of f. Unknown flags and the zero Snapshot use defaults.
func (s Snapshot) Enabled(f Flag) bool {
	if v, ok := s.values[f]; ok {
		return v
	}
	d, _ := Lookup(f)
	return d.Default
}

// With returns a copy with f set to v
func (s Snapshot) With(f Flag, v bool) Snapshot {
	overrides := s.Map()
	overrides[f] = v
	return NewSnapshot(overrides)
}

// Map returns a copy of the resolved values
func (s Snapshot) Map() map[Flag]bool {
	out := make(map[Flag]bool, len(Definitions))
	for _, d := range Definitions {
		out[d.Flag] = s.Enabled(d.Flag)
	}
	return out
}

// Hash sha256 of the canonical flag listing, logged with each run
func (s Snapshot) Hash() string {
	type entry struct {
		Flag  Flag `json:"flag"`
		Value bool `json:"value"`
	}
	entries := make([]entry, 0, len(Definitions))
	for f, v := range s.Map() {
		entries = append(entries, entry{Flag: f, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Flag < entries[j].Flag })

	data, _ := json.Marshal(entries)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
