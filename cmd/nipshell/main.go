// Command nipshell is an interactive REPL that drives an Engine the same
// way a foreign host would drive it across the cabi boundary: stage
// configuration, create the engine, feed it hex-encoded frames, and poll
// for events. Unlike the engine core, this command is real-time: it reads
// the wall clock to supply `now` and rate-limits repeated fault logging,
// neither of which the deterministic core is permitted to do.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeycumines/go-catrate"
	prompt "github.com/joeycumines/go-prompt"
	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"

	"github.com/joeycumines/nip/engine"
	"github.com/joeycumines/nip/proto/ethernet"
	"github.com/joeycumines/nip/proto/ipv4"
)

type shell struct {
	eng     *engine.Engine
	log     *logiface.Logger[*izerolog.Event]
	faults  *catrate.Limiter
	ipv4    ipv4.Addr
	hasIPv4 bool
	link    ethernet.MacAddr
	hasLink bool
}

func newShell() *shell {
	zl := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stdout })).With().Timestamp().Logger()
	log := logiface.New[*izerolog.Event](izerolog.WithZerolog(zl))

	faults := catrate.NewLimiter(map[time.Duration]int{
		time.Second: 1,
		time.Minute: 20,
	})

	return &shell{log: log, faults: faults}
}

func (s *shell) logFault(category string, err error) {
	if _, ok := s.faults.Allow(category); !ok {
		return // rate-limited: this class of fault has already been reported recently
	}
	s.log.Warning().Str("category", category).Err(err).Log("host boundary fault")
}

func (s *shell) execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	cmd, args := fields[0], fields[1:]
	var err error
	switch cmd {
	case "set-ipv4":
		err = s.cmdSetIPv4(args)
	case "set-link":
		err = s.cmdSetLink(args)
	case "new":
		err = s.cmdNew(args)
	case "recv":
		err = s.cmdReceive(args)
	case "bind-udp":
		err = s.cmdBindUDP(args)
	case "listen-tcp":
		err = s.cmdListenTCP(args)
	case "poll":
		err = s.cmdPoll()
	case "drop":
		err = s.cmdDrop()
	case "quit", "exit":
		fmt.Println("bye")
		os.Exit(0)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		s.logFault(cmd, err)
	}
}

func (s *shell) cmdSetIPv4(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: set-ipv4 <a.b.c.d or 0xHEX>")
	}
	addr, err := parseIPv4(args[0])
	if err != nil {
		return err
	}
	s.ipv4, s.hasIPv4 = addr, true
	fmt.Println("staged my_ipv4_addr =", addr)
	return nil
}

func (s *shell) cmdSetLink(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: set-link <12-hex-digit-mac>")
	}
	raw, err := hex.DecodeString(args[0])
	if err != nil || len(raw) != 6 {
		return fmt.Errorf("invalid mac: %w", err)
	}
	copy(s.link[:], raw)
	s.hasLink = true
	fmt.Println("staged my_link_addr =", s.link)
	return nil
}

func (s *shell) cmdNew(args []string) error {
	if !s.hasIPv4 || !s.hasLink {
		return fmt.Errorf("set-ipv4 and set-link must be staged first")
	}
	var opts []engine.Option
	opts = append(opts, engine.WithMyIPv4Addr(s.ipv4), engine.WithMyLinkAddr(s.link))
	for _, a := range args {
		table, ttl, err := parseTTLArg(a)
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithDefaultTTL(table, ttl))
	}

	e, err := engine.FromOptions(time.Now(), opts...)
	if err != nil {
		return err
	}
	s.eng = e
	fmt.Println("engine created")
	return nil
}

func (s *shell) cmdReceive(args []string) error {
	if s.eng == nil {
		return fmt.Errorf("no engine: run 'new' first")
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: recv <hex-frame-bytes>")
	}
	frame, err := hex.DecodeString(args[0])
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	if err := s.eng.Receive(time.Now(), frame); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func (s *shell) cmdBindUDP(args []string) error {
	if s.eng == nil {
		return fmt.Errorf("no engine: run 'new' first")
	}
	port, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return err
	}
	s.eng.BindUDP(uint16(port))
	fmt.Println("bound udp port", port)
	return nil
}

func (s *shell) cmdListenTCP(args []string) error {
	if s.eng == nil {
		return fmt.Errorf("no engine: run 'new' first")
	}
	port, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return err
	}
	s.eng.ListenTCP(uint16(port))
	fmt.Println("listening on tcp port", port)
	return nil
}

func (s *shell) cmdPoll() error {
	if s.eng == nil {
		return fmt.Errorf("no engine: run 'new' first")
	}
	ev, ok := s.eng.Peek(time.Now())
	if !ok {
		fmt.Println("EAGAIN")
		return nil
	}
	fmt.Printf("event code=%d %#v\n", ev.Code(), ev)
	return nil
}

func (s *shell) cmdDrop() error {
	if s.eng == nil {
		return fmt.Errorf("no engine: run 'new' first")
	}
	if s.eng.Drop(time.Now()) {
		fmt.Println("dropped")
	} else {
		fmt.Println("EAGAIN")
	}
	return nil
}

func parseIPv4(s string) (ipv4.Addr, error) {
	if strings.HasPrefix(s, "0x") {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		return ipv4.Addr(v), err
	}
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("invalid ipv4 address %q", s)
	}
	var addr uint32
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid ipv4 address %q", s)
		}
		addr = addr<<8 | uint32(v)
	}
	return ipv4.Addr(addr), nil
}

func parseTTLArg(s string) (table string, ttlNanos int64, err error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("invalid ttl option %q, want table=duration", s)
	}
	d, err := time.ParseDuration(parts[1])
	if err != nil {
		return "", 0, err
	}
	return parts[0], int64(d), nil
}

func completer(d prompt.Document) ([]prompt.Suggest, int32, int32) {
	suggestions := []prompt.Suggest{
		{Text: "set-ipv4", Description: "stage my_ipv4_addr"},
		{Text: "set-link", Description: "stage my_link_addr"},
		{Text: "new", Description: "materialize the engine from staged configuration"},
		{Text: "recv", Description: "inject a hex-encoded inbound frame"},
		{Text: "bind-udp", Description: "bind a udp port"},
		{Text: "listen-tcp", Description: "start listening on a tcp port"},
		{Text: "poll", Description: "peek the head event"},
		{Text: "drop", Description: "discard the head event"},
		{Text: "quit", Description: "exit nipshell"},
	}
	endIndex := d.CurrentRuneIndex()
	w := d.GetWordBeforeCursor()
	return prompt.FilterHasPrefix(suggestions, w, true), int32(endIndex) - int32(len(w)), int32(endIndex)
}

func main() {
	s := newShell()
	p := prompt.New(
		s.execute,
		prompt.WithCompleter(completer),
		prompt.WithPrefix("nip> "),
		prompt.WithTitle("nipshell"),
	)
	p.Run()
}
