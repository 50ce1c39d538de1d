package engine

import (
	"github.com/joeycumines/logiface"

	"github.com/joeycumines/nip/proto/ethernet"
	"github.com/joeycumines/nip/proto/ipv4"
)

// Options holds the validated, immutable configuration an Engine is built
// from. It is the Go-native counterpart of the host boundary's process-wide
// staging area: the cabi package accumulates the same settings from
// individual setter calls and turns them into Options at new_engine time.
type Options struct {
	myIPv4Addr ipv4.Addr
	myLinkAddr ethernet.MacAddr
	rngSeed    [32]byte
	hasSeed    bool
	defaultTTL map[string]int64 // table name -> default TTL, nanoseconds
	logger     *logiface.Logger[logiface.Event]
}

// Option configures an Engine at construction time, following the
// functional-options pattern.
type Option func(*Options)

// WithMyIPv4Addr sets the engine's local IPv4 address.
func WithMyIPv4Addr(addr ipv4.Addr) Option {
	return func(o *Options) { o.myIPv4Addr = addr }
}

// WithMyLinkAddr sets the engine's local link-layer address.
func WithMyLinkAddr(addr ethernet.MacAddr) Option {
	return func(o *Options) { o.myLinkAddr = addr }
}

// WithRngSeed seeds the engine's deterministic PRNG, for reproducible runs.
func WithRngSeed(seed [32]byte) Option {
	return func(o *Options) {
		o.rngSeed = seed
		o.hasSeed = true
	}
}

// WithDefaultTTL sets the default TTL (in nanoseconds) for the named
// internal table (e.g. "arp", "tcb").
func WithDefaultTTL(table string, ttlNanos int64) Option {
	return func(o *Options) {
		if o.defaultTTL == nil {
			o.defaultTTL = make(map[string]int64)
		}
		o.defaultTTL[table] = ttlNanos
	}
}

// WithLogger attaches a structured logger. Passing nil is a no-op: the
// default logger (set by resolveOptions) already discards everything, since
// it is built with no writer.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(o *Options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func resolveOptions(opts []Option) Options {
	o := Options{logger: logiface.New[logiface.Event]()}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// validate enforces the configuration invariants from_options requires:
// the local IPv4 address is neither unspecified nor broadcast, and the
// local link address is a unicast, non-nil MAC.
func (o Options) validate() error {
	if o.myIPv4Addr.IsUnspecified() {
		return NewFailure(FailureOutOfRange, "my_ipv4_addr must not be unspecified")
	}
	if o.myIPv4Addr.IsBroadcast() {
		return NewFailure(FailureOutOfRange, "my_ipv4_addr must not be the broadcast address")
	}
	if o.myLinkAddr.IsNil() {
		return NewFailure(FailureOutOfRange, "my_link_addr must not be nil")
	}
	if !o.myLinkAddr.IsUnicast() {
		return NewFailure(FailureOutOfRange, "my_link_addr must be unicast")
	}
	return nil
}

func (o Options) ttlFor(table string, fallback int64) int64 {
	if v, ok := o.defaultTTL[table]; ok {
		return v
	}
	return fallback
}
