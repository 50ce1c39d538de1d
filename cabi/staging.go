// Package main implements the engine's C-callable host boundary: a cgo
// //export surface built with -buildmode=c-shared. It is the literal
// foreign-function layer spec.md §4.E and §6 describe, translating
// pointers/lengths into the engine facade's typed calls and reducing every
// *engine.Failure to a POSIX errno.
package main

import "C"

import (
	"sync"

	"github.com/joeycumines/nip/engine"
	"github.com/joeycumines/nip/proto/ethernet"
	"github.com/joeycumines/nip/proto/ipv4"
)

// staging is the process-wide configuration holder consulted by
// nip_new_engine. Host callers configure it via the set_* functions before
// creating an engine; per-engine options are frozen at creation time. This
// mirrors the original interop layer's lazy_static Mutex<Options>, and is
// the only synchronization this boundary needs: it is uncontended by
// design (configure-then-create, never concurrently).
var staging struct {
	mu         sync.Mutex
	ipv4Addr   ipv4.Addr
	hasIPv4    bool
	linkAddr   ethernet.MacAddr
	hasLink    bool
	rngSeed    [32]byte
	hasSeed    bool
	defaultTTL map[string]int64
}

func stageIPv4Addr(addr ipv4.Addr) {
	staging.mu.Lock()
	defer staging.mu.Unlock()
	staging.ipv4Addr = addr
	staging.hasIPv4 = true
}

func stageLinkAddr(addr ethernet.MacAddr) {
	staging.mu.Lock()
	defer staging.mu.Unlock()
	staging.linkAddr = addr
	staging.hasLink = true
}

// buildStagedOptions snapshots the staged configuration as engine.Option
// values, the way nip_new_engine clones OPTIONS in the original source.
func buildStagedOptions() []engine.Option {
	staging.mu.Lock()
	defer staging.mu.Unlock()

	var opts []engine.Option
	if staging.hasIPv4 {
		opts = append(opts, engine.WithMyIPv4Addr(staging.ipv4Addr))
	}
	if staging.hasLink {
		opts = append(opts, engine.WithMyLinkAddr(staging.linkAddr))
	}
	if staging.hasSeed {
		opts = append(opts, engine.WithRngSeed(staging.rngSeed))
	}
	for table, ttl := range staging.defaultTTL {
		opts = append(opts, engine.WithDefaultTTL(table, ttl))
	}
	return opts
}
