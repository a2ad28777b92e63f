// Package pipeerr carries the pipeline's error taxonomy: the closed set
// of failure kinds from spec §7, split into hard failures (the invocation
// must surface them) and warnings (recoverable, accumulated alongside
// data rather than propagated).
package pipeerr

import (
	"errors"
	"fmt"
)

// Kind names one of the taxonomy entries from §7. It exists for
// programmatic dispatch (e.g. "was this a version mismatch or a lock
// timeout"); string values are for log lines and warning payloads, not
// protocol wire formats.
type Kind string

const (
	KindHomeDirUnavailable   Kind = "home_dir_unavailable"
	KindFileIO               Kind = "file_io"
	KindDecodeRecord         Kind = "decode_record"
	KindDecodeFile           Kind = "decode_file"
	KindPricingFetch         Kind = "pricing_fetch"
	KindCacheVersionMismatch Kind = "cache_version_mismatch"
	KindCacheCorrupt         Kind = "cache_corrupt"
	KindCacheLock            Kind = "cache_lock"
	KindCacheWrite           Kind = "cache_write"
)

// Hard failures: the invocation cannot proceed. These are returned, not
// just logged.
var (
	ErrHomeDirUnavailable = errors.New("pipeerr: home directory could not be determined")
	ErrCacheLockTimeout   = errors.New("pipeerr: another instance is running (cache lock timed out)")
	ErrCacheWrite         = errors.New("pipeerr: failed to persist cache file")
	ErrNoUsageData        = errors.New("pipeerr: no usage data found from any source")
)

// Warning is a recoverable event surfaced to the caller alongside data,
// per §7's "accumulate into a vector" policy and §6.5's exit semantics.
type Warning struct {
	Kind    Kind
	Source  string // adapter name, or "" when not source-specific
	Message string
	Err     error
}

func (w Warning) Error() string {
	if w.Source != "" {
		return fmt.Sprintf("[%s] %s: %s", w.Kind, w.Source, w.Message)
	}
	return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
}

func (w Warning) Unwrap() error { return w.Err }

func NewWarning(kind Kind, source, message string, err error) Warning {
	return Warning{Kind: kind, Source: source, Message: message, Err: err}
}
