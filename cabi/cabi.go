package main

/*
#include <stddef.h>
#include <stdlib.h>

typedef struct {
	const unsigned char *context_bytes;
	size_t context_length;
	unsigned short next_hop_mtu;
	unsigned char msg_type;
	unsigned char code;
} nip_icmpv4_error;
*/
import "C"

import (
	"errors"
	"runtime/cgo"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/nip/async"
	"github.com/joeycumines/nip/engine"
	"github.com/joeycumines/nip/proto/ethernet"
	"github.com/joeycumines/nip/proto/ipv4"
)

// boundaryConn pairs one Engine with the C-owned buffers its event getters
// have most recently handed across the boundary, so nip_drop_event and
// nip_drop_engine can free them; a getter that hands out a new buffer of
// the same kind frees the previous one first. It is what crosses the
// boundary as the opaque engine pointer, via cgo.Handle.
type boundaryConn struct {
	eng        *engine.Engine
	dataBuf    unsafe.Pointer // last payload/frame handed to the host (Transmit or UdpDatagramReceived)
	contextBuf unsafe.Pointer
}

func (b *boundaryConn) releaseBuffers() {
	if b.dataBuf != nil {
		C.free(b.dataBuf)
		b.dataBuf = nil
	}
	if b.contextBuf != nil {
		C.free(b.contextBuf)
		b.contextBuf = nil
	}
}

func nowFromNanos(nowNanos C.longlong) time.Time {
	return time.Unix(0, int64(nowNanos))
}

func errnoFor(err error) C.int {
	var f *engine.Failure
	if errors.As(err, &f) {
		return C.int(f.Kind.Errno())
	}
	return C.int(unix.EINVAL)
}

func resolveConn(engineHandle unsafe.Pointer) (*boundaryConn, C.int) {
	if engineHandle == nil {
		return nil, C.int(unix.EINVAL)
	}
	h := cgo.Handle(uintptr(engineHandle))
	conn, ok := h.Value().(*boundaryConn)
	if !ok {
		return nil, C.int(unix.EINVAL)
	}
	return conn, 0
}

//export nip_set_my_ipv4_addr
func nip_set_my_ipv4_addr(addr C.uint) C.int {
	a := ipv4.Addr(uint32(addr))
	if a.IsUnspecified() || a.IsBroadcast() {
		return C.int(unix.EINVAL)
	}
	stageIPv4Addr(a)
	return 0
}

//export nip_set_my_link_addr
func nip_set_my_link_addr(linkAddr *C.uchar) C.int {
	if linkAddr == nil {
		return C.int(unix.EINVAL)
	}
	bytes := unsafe.Slice((*byte)(linkAddr), 6)
	var mac ethernet.MacAddr
	copy(mac[:], bytes)
	if mac.IsNil() || !mac.IsUnicast() {
		return C.int(unix.EINVAL)
	}
	stageLinkAddr(mac)
	return 0
}

//export nip_new_engine
func nip_new_engine(engineOut *unsafe.Pointer, nowNanos C.longlong) C.int {
	if engineOut == nil {
		return C.int(unix.EINVAL)
	}

	e, err := engine.FromOptions(nowFromNanos(nowNanos), buildStagedOptions()...)
	if err != nil {
		return errnoFor(err)
	}

	h := cgo.NewHandle(&boundaryConn{eng: e})
	*engineOut = unsafe.Pointer(uintptr(h))
	return 0
}

//export nip_drop_engine
func nip_drop_engine(engineHandle unsafe.Pointer) C.int {
	conn, errno := resolveConn(engineHandle)
	if errno != 0 {
		return errno
	}
	conn.releaseBuffers()
	cgo.Handle(uintptr(engineHandle)).Delete()
	return 0
}

//export nip_receive_datagram
func nip_receive_datagram(engineHandle unsafe.Pointer, bytes *C.uchar, length C.size_t, nowNanos C.longlong) C.int {
	conn, errno := resolveConn(engineHandle)
	if errno != 0 {
		return errno
	}
	if bytes == nil {
		return C.int(unix.EINVAL)
	}
	frame := unsafe.Slice((*byte)(bytes), int(length))

	if err := conn.eng.Receive(nowFromNanos(nowNanos), frame); err != nil {
		return errnoFor(err)
	}
	return 0
}

//export nip_poll_event
func nip_poll_event(eventCodeOut *C.int, engineHandle unsafe.Pointer, nowNanos C.longlong) C.int {
	if eventCodeOut == nil {
		return C.int(unix.EINVAL)
	}
	conn, errno := resolveConn(engineHandle)
	if errno != 0 {
		return errno
	}

	ev, ok := conn.eng.Peek(nowFromNanos(nowNanos))
	if !ok {
		return C.int(unix.EAGAIN)
	}
	*eventCodeOut = C.int(ev.Code())
	return 0
}

//export nip_drop_event
func nip_drop_event(engineHandle unsafe.Pointer, nowNanos C.longlong) C.int {
	conn, errno := resolveConn(engineHandle)
	if errno != 0 {
		return errno
	}
	conn.releaseBuffers()
	if conn.eng.Drop(nowFromNanos(nowNanos)) {
		return 0
	}
	return C.int(unix.EAGAIN)
}

//export nip_get_transmit_event
func nip_get_transmit_event(bytesOut **C.uchar, lengthOut *C.size_t, engineHandle unsafe.Pointer, nowNanos C.longlong) C.int {
	if bytesOut == nil || lengthOut == nil {
		return C.int(unix.EINVAL)
	}
	*bytesOut = nil
	*lengthOut = 0

	conn, errno := resolveConn(engineHandle)
	if errno != 0 {
		return errno
	}

	ev, ok := conn.eng.Peek(nowFromNanos(nowNanos))
	if !ok {
		return C.int(unix.EAGAIN)
	}
	transmit, ok := ev.(*async.TransmitEvent)
	if !ok {
		return C.int(unix.EPERM)
	}

	if conn.dataBuf != nil {
		C.free(conn.dataBuf)
	}
	conn.dataBuf = C.CBytes(transmit.Frame)
	*bytesOut = (*C.uchar)(conn.dataBuf)
	*lengthOut = C.size_t(len(transmit.Frame))
	return 0
}

//export nip_get_icmpv4_error_event
func nip_get_icmpv4_error_event(errorOut *C.nip_icmpv4_error, engineHandle unsafe.Pointer, nowNanos C.longlong) C.int {
	if errorOut == nil {
		return C.int(unix.EINVAL)
	}
	conn, errno := resolveConn(engineHandle)
	if errno != 0 {
		return errno
	}

	ev, ok := conn.eng.Peek(nowFromNanos(nowNanos))
	if !ok {
		return C.int(unix.EAGAIN)
	}
	icmpErr, ok := ev.(*async.Icmpv4ErrorEvent)
	if !ok {
		return C.int(unix.EPERM)
	}

	typ, code := icmpErr.ID.Encode()
	errorOut.msg_type = C.uchar(typ)
	errorOut.code = C.uchar(code)
	errorOut.next_hop_mtu = C.ushort(icmpErr.NextHopMTU)

	if conn.contextBuf != nil {
		C.free(conn.contextBuf)
		conn.contextBuf = nil
	}
	if len(icmpErr.Context) > 0 {
		conn.contextBuf = C.CBytes(icmpErr.Context)
	}
	errorOut.context_bytes = (*C.uchar)(conn.contextBuf)
	errorOut.context_length = C.size_t(len(icmpErr.Context))
	return 0
}

//export nip_get_tcp_connection_established_event
func nip_get_tcp_connection_established_event(connOut *C.ulonglong, engineHandle unsafe.Pointer, nowNanos C.longlong) C.int {
	if connOut == nil {
		return C.int(unix.EINVAL)
	}
	conn, errno := resolveConn(engineHandle)
	if errno != 0 {
		return errno
	}
	ev, ok := conn.eng.Peek(nowFromNanos(nowNanos))
	if !ok {
		return C.int(unix.EAGAIN)
	}
	est, ok := ev.(*async.TcpConnectionEstablishedEvent)
	if !ok {
		return C.int(unix.EPERM)
	}
	*connOut = C.ulonglong(est.Conn)
	return 0
}

//export nip_get_tcp_connection_closed_event
func nip_get_tcp_connection_closed_event(connOut *C.ulonglong, engineHandle unsafe.Pointer, nowNanos C.longlong) C.int {
	if connOut == nil {
		return C.int(unix.EINVAL)
	}
	conn, errno := resolveConn(engineHandle)
	if errno != 0 {
		return errno
	}
	ev, ok := conn.eng.Peek(nowFromNanos(nowNanos))
	if !ok {
		return C.int(unix.EAGAIN)
	}
	closed, ok := ev.(*async.TcpConnectionClosedEvent)
	if !ok {
		return C.int(unix.EPERM)
	}
	*connOut = C.ulonglong(closed.Conn)
	return 0
}

//export nip_get_tcp_bytes_available_event
func nip_get_tcp_bytes_available_event(connOut *C.ulonglong, engineHandle unsafe.Pointer, nowNanos C.longlong) C.int {
	if connOut == nil {
		return C.int(unix.EINVAL)
	}
	conn, errno := resolveConn(engineHandle)
	if errno != 0 {
		return errno
	}
	ev, ok := conn.eng.Peek(nowFromNanos(nowNanos))
	if !ok {
		return C.int(unix.EAGAIN)
	}
	avail, ok := ev.(*async.TcpBytesAvailableEvent)
	if !ok {
		return C.int(unix.EPERM)
	}
	*connOut = C.ulonglong(avail.Conn)
	return 0
}

//export nip_get_udp_datagram_received_event
func nip_get_udp_datagram_received_event(sourceAddrOut *C.uint, sourcePortOut, localPortOut *C.ushort, bytesOut **C.uchar, lengthOut *C.size_t, engineHandle unsafe.Pointer, nowNanos C.longlong) C.int {
	if sourceAddrOut == nil || sourcePortOut == nil || localPortOut == nil || bytesOut == nil || lengthOut == nil {
		return C.int(unix.EINVAL)
	}
	*bytesOut = nil
	*lengthOut = 0

	conn, errno := resolveConn(engineHandle)
	if errno != 0 {
		return errno
	}
	ev, ok := conn.eng.Peek(nowFromNanos(nowNanos))
	if !ok {
		return C.int(unix.EAGAIN)
	}
	dgram, ok := ev.(*async.UdpDatagramReceivedEvent)
	if !ok {
		return C.int(unix.EPERM)
	}

	*sourceAddrOut = C.uint(dgram.SourceAddr)
	*sourcePortOut = C.ushort(dgram.SourcePort)
	*localPortOut = C.ushort(dgram.LocalPort)

	if conn.dataBuf != nil {
		C.free(conn.dataBuf)
	}
	conn.dataBuf = C.CBytes(dgram.Payload)
	*bytesOut = (*C.uchar)(conn.dataBuf)
	*lengthOut = C.size_t(len(dgram.Payload))
	return 0
}

func main() {}
