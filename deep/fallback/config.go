package fallback

import (
	"github.com/pcahill/copykit/internal/envflag"
)

// Environment toggles consumed by the controller. Read once at engine
// construction, not per copy.
const (
	EnvPortableMemo     = "COPYKIT_PORTABLE_MEMO"
	EnvNoFallback       = "COPYKIT_NO_FALLBACK"
	EnvIgnoreHookErrors = "COPYKIT_IGNORE_HOOK_ERRORS"
)

// Options configures the controller.
type Options struct {
	// PortableMemo forces the plain-mapping registry for every node,
	// not just recovered hooks. Useful to validate hook compatibility.
	PortableMemo bool

	// NoFallback disables recovery: a fallback-eligible hook error is
	// returned to the caller as-is.
	NoFallback bool

	// IgnoreSuffixes suppresses the diagnostic for errors whose
	// message ends with one of these suffixes. Recovery still runs.
	IgnoreSuffixes []string
}

// FromEnv reads the environment toggles into an Options.
func FromEnv() Options {
	return Options{
		PortableMemo:   envflag.Bool(EnvPortableMemo),
		NoFallback:     envflag.Bool(EnvNoFallback),
		IgnoreSuffixes: envflag.List(EnvIgnoreHookErrors),
	}
}

// Merge overlays explicit options on top of o: booleans are OR-ed,
// suffix lists concatenated.
func (o Options) Merge(explicit Options) Options {
	return Options{
		PortableMemo:   o.PortableMemo || explicit.PortableMemo,
		NoFallback:     o.NoFallback || explicit.NoFallback,
		IgnoreSuffixes: append(append([]string(nil), o.IgnoreSuffixes...), explicit.IgnoreSuffixes...),
	}
}
