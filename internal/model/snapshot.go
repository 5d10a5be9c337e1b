package model

import (
	"os"
	"runtime/debug"
	"strings"
)

// ChangeKind labels one kind of observed process-state delta.
type ChangeKind string

const (
	// EnvAdded marks an environment variable present only after the span.
	EnvAdded ChangeKind = "env_added"
	// EnvRemoved marks an environment variable present only before the span.
	EnvRemoved ChangeKind = "env_removed"
	// EnvChanged marks an environment variable whose value differs across the span.
	EnvChanged ChangeKind = "env_changed"
	// ModuleAdded marks a code module loaded during the span.
	// Module removals are not reported: modules are rarely unloaded and
	// absence is not evidence of pollution.
	ModuleAdded ChangeKind = "module_added"
)

// StateChange records one delta between two snapshots. Only the fields
// relevant to its kind are populated.
type StateChange struct {
	Kind   ChangeKind `json:"type"`
	Key    string     `json:"key,omitempty"`
	Value  string     `json:"value,omitempty"`
	Old    string     `json:"old,omitempty"`
	New    string     `json:"new,omitempty"`
	Module string     `json:"module,omitempty"`
}

// Snapshot is a point-in-time capture of process-global state. A snapshot
// is never mutated after creation; it exists to be diffed against another
// snapshot and discarded.
type Snapshot struct {
	Env     map[string]string
	Modules map[string]struct{}
}

// ModuleLister enumerates identifiers of currently-loaded code units.
type ModuleLister func() []string

// BuildInfoModules lists the module paths compiled into the running binary.
// It is the default lister for Capture.
func BuildInfoModules() []string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	paths := make([]string, 0, len(info.Deps)+1)
	paths = append(paths, info.Main.Path)
	for _, dep := range info.Deps {
		paths = append(paths, dep.Path)
	}
	return paths
}

// Capture returns a snapshot of the current environment variables and the
// currently-loaded module identifiers. A nil lister falls back to
// BuildInfoModules. Capture has no side effects and may be taken at
// arbitrary points.
func Capture(listModules ModuleLister) Snapshot {
	if listModules == nil {
		listModules = BuildInfoModules
	}
	env := map[string]string{}
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[key] = value
	}
	modules := map[string]struct{}{}
	for _, name := range listModules() {
		modules[name] = struct{}{}
	}
	return Snapshot{Env: env, Modules: modules}
}

// Diff returns the state changes observed between two snapshots. Every
// applicable change appears exactly once; the order of the returned slice
// is unspecified and callers must treat it as a set. Diffing a snapshot
// against itself yields an empty slice.
func Diff(before, after Snapshot) []StateChange {
	changes := []StateChange{}
	for key, value := range after.Env {
		old, present := before.Env[key]
		switch {
		case !present:
			changes = append(changes, StateChange{Kind: EnvAdded, Key: key, Value: value})
		case old != value:
			changes = append(changes, StateChange{Kind: EnvChanged, Key: key, Old: old, New: value})
		}
	}
	for key := range before.Env {
		if _, present := after.Env[key]; !present {
			changes = append(changes, StateChange{Kind: EnvRemoved, Key: key})
		}
	}
	for name := range after.Modules {
		if _, present := before.Modules[name]; !present {
			changes = append(changes, StateChange{Kind: ModuleAdded, Module: name})
		}
	}
	return changes
}
