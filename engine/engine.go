// Package engine implements the facade that owns a TTL cache, a cooperative
// async runtime, an event queue, a seeded PRNG, and frozen configuration,
// and wires the protocol collaborators (ARP/IPv4/ICMPv4/TCP/UDP) together
// to answer receive/peek/poll.
package engine

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/joeycumines/nip/async"
	"github.com/joeycumines/nip/proto/arp"
	"github.com/joeycumines/nip/proto/ethernet"
	"github.com/joeycumines/nip/proto/icmpv4"
	"github.com/joeycumines/nip/proto/ipv4"
	"github.com/joeycumines/nip/proto/tcp"
	"github.com/joeycumines/nip/proto/udp"
	"github.com/joeycumines/nip/ttlcache"
)

const (
	defaultArpTTL = 60 * time.Second
	defaultTcbTTL = 2 * time.Minute
)

// connKey identifies one TCP connection by its 3-tuple relative to a fixed
// local address (the engine's own IPv4 address is implicit).
type connKey struct {
	remoteAddr ipv4.Addr
	remotePort uint16
	localPort  uint16
}

type tcbEntry struct {
	handle uint64
	conn   *tcp.Conn
}

// Engine is one network stack instance. It is not safe for concurrent use:
// its contract assumes a single calling thread, matching the host
// boundary's single-threaded cooperative model.
type Engine struct {
	opts Options

	arpTable *ttlcache.Cache[ipv4.Addr, ethernet.MacAddr]
	tcbTable *ttlcache.Cache[connKey, *tcbEntry]
	udpPorts map[uint16]struct{}
	tcpPorts map[uint16]struct{}

	handleToKey map[uint64]connKey
	nextHandle  uint64

	rt    *async.Runtime
	queue *async.EventQueue
	rng   *rand.Rand

	lastNow time.Time
}

// FromOptions validates opts and constructs an Engine, seeding its internal
// clock at now.
func FromOptions(now time.Time, opts ...Option) (*Engine, error) {
	o := resolveOptions(opts)
	if err := o.validate(); err != nil {
		return nil, err
	}

	var seed1, seed2 uint64
	if o.hasSeed {
		for i := 0; i < 8; i++ {
			seed1 |= uint64(o.rngSeed[i]) << (8 * i)
			seed2 |= uint64(o.rngSeed[i+8]) << (8 * i)
		}
	}

	rt := async.NewRuntime()
	e := &Engine{
		opts:        o,
		arpTable:    ttlcache.New[ipv4.Addr, ethernet.MacAddr](time.Duration(o.ttlFor("arp", int64(defaultArpTTL))), now),
		tcbTable:    ttlcache.New[connKey, *tcbEntry](time.Duration(o.ttlFor("tcb", int64(defaultTcbTTL))), now),
		udpPorts:    make(map[uint16]struct{}),
		tcpPorts:    make(map[uint16]struct{}),
		handleToKey: make(map[uint64]connKey),
		rt:          rt,
		queue:       async.NewEventQueue(rt),
		rng:         rand.New(rand.NewPCG(seed1, seed2)),
		lastNow:     now,
	}
	if b := e.opts.logger.Debug(); b.Enabled() {
		b.Str("my_ipv4_addr", o.myIPv4Addr.String()).Log(`engine created`)
	}
	return e, nil
}

// BindUDP registers port as bound, so inbound UDP datagrams addressed to it
// are delivered to the host as UdpDatagramReceivedEvent rather than dropped.
func (e *Engine) BindUDP(port uint16) {
	e.udpPorts[port] = struct{}{}
}

// ListenTCP registers port as passively listening, so inbound SYNs
// addressed to it start a new connection's handshake.
func (e *Engine) ListenTCP(port uint16) {
	e.tcpPorts[port] = struct{}{}
}

// advanceClock runs cache eviction if now has strictly advanced since the
// last call, honoring TryEvict's strict-advance precondition while
// tolerating the repeated same-instant calls every other entry point must
// accept.
func (e *Engine) advanceClock(now time.Time) {
	if now.After(e.lastNow) {
		e.arpTable.TryEvict(now)
		e.tcbTable.TryEvict(now)
		e.lastNow = now
	}
}

// Receive hands an inbound Ethernet frame to the appropriate protocol
// collaborator. Failures bubble up as a typed *Failure; FailureIgnored
// reports frames this engine silently drops (e.g. addressed to others),
// which callers must not treat as errors.
func (e *Engine) Receive(now time.Time, frameBytes []byte) error {
	e.advanceClock(now)
	err := e.dispatchFrame(now, frameBytes)
	e.logReceiveResult(err)
	return err
}

func (e *Engine) dispatchFrame(now time.Time, frameBytes []byte) error {
	frame, err := ethernet.Parse(frameBytes)
	if err != nil {
		return WrapFailure(FailureMalformed, err, "ethernet frame")
	}

	if !frame.Dst.IsBroadcast() && frame.Dst != e.opts.myLinkAddr {
		return NewFailure(FailureIgnored, "frame addressed to a different link address")
	}

	switch frame.Type {
	case ethernet.EtherTypeARP:
		return e.receiveARP(frame)
	case ethernet.EtherTypeIPv4:
		return e.receiveIPv4(now, frame)
	default:
		return NewFailure(FailureUnsupported, "unsupported ethertype %#04x", uint16(frame.Type))
	}
}

// logReceiveResult reports the outcome of a dispatchFrame call at a level
// matched to its severity: expected, routine drops are Debug noise, and
// anything else (malformed input, an unrecognized protocol, a non-Failure
// error) is Warning.
func (e *Engine) logReceiveResult(err error) {
	if err == nil {
		return
	}
	var f *Failure
	if !errors.As(err, &f) {
		e.opts.logger.Warning().Err(err).Log(`receive failed`)
		return
	}
	switch f.Kind {
	case FailureIgnored, FailureConnectionRefused, FailureMisdelivered:
		e.opts.logger.Debug().Str("kind", f.Kind.String()).Log(f.Message)
	default:
		e.opts.logger.Warning().Str("kind", f.Kind.String()).Log(f.Message)
	}
}

func (e *Engine) receiveARP(frame ethernet.Frame) error {
	pkt, err := arp.Parse(frame.Payload)
	if err != nil {
		return WrapFailure(FailureMalformed, err, "arp packet")
	}

	switch pkt.Op {
	case arp.OpReply:
		e.arpTable.Insert(pkt.SenderProtocol, pkt.SenderHardware)
		return nil

	case arp.OpRequest:
		if pkt.TargetProtocol != e.opts.myIPv4Addr {
			return NewFailure(FailureIgnored, "arp request for a different address")
		}
		e.arpTable.Insert(pkt.SenderProtocol, pkt.SenderHardware)

		reply := arp.Build(arp.Packet{
			Op:             arp.OpReply,
			SenderHardware: e.opts.myLinkAddr,
			SenderProtocol: e.opts.myIPv4Addr,
			TargetHardware: pkt.SenderHardware,
			TargetProtocol: pkt.SenderProtocol,
		})
		out := ethernet.Build(pkt.SenderHardware, e.opts.myLinkAddr, ethernet.EtherTypeARP, reply)
		e.emitImmediate(&async.TransmitEvent{Frame: out})
		return nil

	default:
		return NewFailure(FailureUnsupported, "unsupported arp operation %d", pkt.Op)
	}
}

func (e *Engine) receiveIPv4(now time.Time, frame ethernet.Frame) error {
	hdr, payload, err := ipv4.Parse(frame.Payload)
	if err != nil {
		return WrapFailure(FailureMalformed, err, "ipv4 header")
	}

	if hdr.Dst != e.opts.myIPv4Addr {
		return NewFailure(FailureMisdelivered, "ipv4 datagram addressed to %s", hdr.Dst)
	}

	switch hdr.Protocol {
	case ipv4.ProtocolICMP:
		return e.receiveICMPv4(hdr, payload, frame.Src)
	case ipv4.ProtocolUDP:
		return e.receiveUDP(hdr, payload, frame.Src)
	case ipv4.ProtocolTCP:
		return e.receiveTCP(hdr, payload, frame.Src)
	default:
		e.sendIcmpv4Unreachable(hdr, payload, frame.Src, icmpv4.DestinationUnreachable{Code: icmpv4.CodeProtoUnreachable})
		return NewFailure(FailureUnsupported, "unsupported ip protocol %d", hdr.Protocol)
	}
}

// sendIcmpv4Unreachable transmits an ICMPv4 error datagram to the original
// sender reporting id against the datagram (hdr, originalPayload), and
// surfaces the same fact to the host as an Icmpv4ErrorEvent, the way a real
// stack both answers on the wire and lets the local application observe
// the failure.
func (e *Engine) sendIcmpv4Unreachable(hdr ipv4.Header, originalPayload []byte, replyLinkAddr ethernet.MacAddr, id icmpv4.ErrorID) {
	originalDatagram := ipv4.Build(hdr, originalPayload)
	errMsg := icmpv4.BuildError(id, 0, originalDatagram)
	ipPacket := ipv4.Build(ipv4.Header{
		ID:       hdr.ID,
		TTL:      64,
		Protocol: ipv4.ProtocolICMP,
		Src:      e.opts.myIPv4Addr,
		Dst:      hdr.Src,
	}, errMsg)
	frame := ethernet.Build(replyLinkAddr, e.opts.myLinkAddr, ethernet.EtherTypeIPv4, ipPacket)

	e.emitImmediate(&async.TransmitEvent{Frame: frame})
	e.emitImmediate(&async.Icmpv4ErrorEvent{ID: id, Context: originalDatagram})
}

func (e *Engine) receiveICMPv4(hdr ipv4.Header, payload []byte, replyLinkAddr ethernet.MacAddr) error {
	msg, err := icmpv4.ParseEcho(payload)
	if err != nil {
		return WrapFailure(FailureMalformed, err, "icmpv4 message")
	}
	if msg.Reply {
		return NewFailure(FailureIgnored, "unsolicited icmpv4 echo reply")
	}

	reply := icmpv4.BuildEcho(icmpv4.EchoMessage{
		Reply:      true,
		Identifier: msg.Identifier,
		SeqNum:     msg.SeqNum,
		Data:       msg.Data,
	})
	ipPacket := ipv4.Build(ipv4.Header{
		ID:       hdr.ID,
		TTL:      64,
		Protocol: ipv4.ProtocolICMP,
		Src:      e.opts.myIPv4Addr,
		Dst:      hdr.Src,
	}, reply)
	frame := ethernet.Build(replyLinkAddr, e.opts.myLinkAddr, ethernet.EtherTypeIPv4, ipPacket)

	e.emitImmediate(&async.TransmitEvent{Frame: frame})
	return nil
}

func (e *Engine) receiveUDP(hdr ipv4.Header, payload []byte, replyLinkAddr ethernet.MacAddr) error {
	dgram, err := udp.Parse(payload)
	if err != nil {
		return WrapFailure(FailureMalformed, err, "udp datagram")
	}
	if _, bound := e.udpPorts[dgram.DstPort]; !bound {
		e.sendIcmpv4Unreachable(hdr, payload, replyLinkAddr, icmpv4.DestinationUnreachable{Code: icmpv4.CodePortUnreachable})
		return NewFailure(FailureIgnored, "no listener on udp port %d", dgram.DstPort)
	}

	e.emitImmediate(&async.UdpDatagramReceivedEvent{
		SourceAddr: uint32(hdr.Src),
		SourcePort: dgram.SrcPort,
		LocalPort:  dgram.DstPort,
		Payload:    dgram.Payload,
	})
	return nil
}

func (e *Engine) receiveTCP(hdr ipv4.Header, payload []byte, replyLinkAddr ethernet.MacAddr) error {
	seg, err := tcp.Parse(payload)
	if err != nil {
		return WrapFailure(FailureMalformed, err, "tcp segment")
	}

	key := connKey{remoteAddr: hdr.Src, remotePort: seg.SrcPort, localPort: seg.DstPort}
	entry, ok := e.tcbTable.Get(key)

	if !ok {
		if !seg.Flags.Has(tcp.FlagSYN) {
			return NewFailure(FailureConnectionRefused, "segment for unknown tcp connection")
		}
		if _, listening := e.tcpPorts[seg.DstPort]; !listening {
			e.sendIcmpv4Unreachable(hdr, payload, replyLinkAddr, icmpv4.DestinationUnreachable{Code: icmpv4.CodePortUnreachable})
			return NewFailure(FailureConnectionRefused, "no listener on tcp port %d", seg.DstPort)
		}

		iss := e.rng.Uint32()
		conn := tcp.NewConn(iss, 65535)
		handle := e.nextHandle
		e.nextHandle++
		entry = &tcbEntry{handle: handle, conn: conn}
		e.tcbTable.Insert(key, entry)
		e.handleToKey[handle] = key
	}

	reply, establishedNow, closedNow := entry.conn.HandleSegment(seg)

	if reply != nil {
		segBytes := tcp.Build(*reply, e.opts.myIPv4Addr, hdr.Src)
		ipPacket := ipv4.Build(ipv4.Header{
			ID:       hdr.ID,
			TTL:      64,
			Protocol: ipv4.ProtocolTCP,
			Src:      e.opts.myIPv4Addr,
			Dst:      hdr.Src,
		}, segBytes)
		frame := ethernet.Build(replyLinkAddr, e.opts.myLinkAddr, ethernet.EtherTypeIPv4, ipPacket)
		e.emitImmediate(&async.TransmitEvent{Frame: frame})
	}

	if len(seg.Payload) > 0 && entry.conn.State == tcp.StateEstablished {
		e.emitImmediate(&async.TcpBytesAvailableEvent{Conn: entry.handle})
	}

	if establishedNow {
		e.emitImmediate(&async.TcpConnectionEstablishedEvent{Conn: entry.handle})
	}
	if closedNow {
		e.emitImmediate(&async.TcpConnectionClosedEvent{Conn: entry.handle})
		e.tcbTable.Remove(key)
		delete(e.handleToKey, entry.handle)
	} else {
		e.tcbTable.Insert(key, entry)
	}

	return nil
}

// emitImmediate spawns a coroutine that emits ev on its first resumption and
// completes immediately, the way a protocol transaction that needs no
// suspension still participates in the runtime's insertion-ordered
// scheduling, per the design's coroutines-as-first-class model.
func (e *Engine) emitImmediate(ev async.Event) {
	if b := e.opts.logger.Debug(); b.Enabled() {
		b.Int("event_code", int(ev.Code())).Log(`emit event`)
	}
	async.Spawn(e.rt, func(now time.Time) (*time.Duration, struct{}, error, bool) {
		e.queue.Emit(ev)
		return nil, struct{}{}, nil, true
	})
}

// Peek drains the runtime to quiescence at now, then returns the front event
// without removing it.
func (e *Engine) Peek(now time.Time) (async.Event, bool) {
	e.advanceClock(now)
	return e.queue.Peek(now)
}

// Poll drains the runtime to quiescence at now, then removes and returns
// the front event.
func (e *Engine) Poll(now time.Time) (async.Event, bool) {
	e.advanceClock(now)
	return e.queue.Poll(now)
}

// Drop discards the front event without reading it.
func (e *Engine) Drop(now time.Time) bool {
	e.advanceClock(now)
	return e.queue.Drop(now)
}
