package memcache

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptTransport is an in-memory Transport. Each Flush hands the bytes
// written since the previous flush to the respond callback; whatever it
// returns is queued for the engine's reader. This keeps scripted
// responses behind their requests, the way a real server behaves.
type scriptTransport struct {
	respond func(written []byte) []byte

	mu       sync.Mutex
	pending  bytes.Buffer // written since last flush
	wrote    bytes.Buffer // everything ever written
	leftover []byte       // read bytes not yet consumed

	reads     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newScriptTransport(respond func(written []byte) []byte) *scriptTransport {
	return &scriptTransport{
		respond: respond,
		reads:   make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

// statusResponder answers every request with the same frame.
func statusResponder(frame string) func([]byte) []byte {
	return func([]byte) []byte { return []byte(frame) }
}

// sequenceResponder answers the Nth request with the Nth frame.
func sequenceResponder(frames ...string) func([]byte) []byte {
	var n int
	return func([]byte) []byte {
		if n >= len(frames) {
			return nil
		}
		frame := frames[n]
		n++
		return []byte(frame)
	}
}

// echoKeyResponder answers each mg with a VA carrying the request's own
// key, making response-to-request pairing observable.
func echoKeyResponder(written []byte) []byte {
	fields := strings.Fields(string(written))
	if len(fields) < 2 {
		return []byte("EN\r\n")
	}
	key := fields[1]
	return []byte(fmt.Sprintf("VA %d\r\n%s\r\n", len(key), key))
}

func (t *scriptTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending.Write(p)
	t.wrote.Write(p)
	return len(p), nil
}

func (t *scriptTransport) Flush() error {
	t.mu.Lock()
	written := append([]byte(nil), t.pending.Bytes()...)
	t.pending.Reset()
	respond := t.respond
	t.mu.Unlock()

	if respond == nil {
		return nil
	}
	if out := respond(written); len(out) > 0 {
		t.deliver(out)
	}
	return nil
}

// deliver queues raw bytes for the engine's reader.
func (t *scriptTransport) deliver(b []byte) {
	select {
	case t.reads <- b:
	case <-t.closed:
	}
}

func (t *scriptTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	if len(t.leftover) > 0 {
		n := copy(p, t.leftover)
		t.leftover = t.leftover[n:]
		t.mu.Unlock()
		return n, nil
	}
	t.mu.Unlock()

	select {
	case chunk := <-t.reads:
		n := copy(p, chunk)
		if n < len(chunk) {
			t.mu.Lock()
			t.leftover = append(t.leftover, chunk[n:]...)
			t.mu.Unlock()
		}
		return n, nil
	case <-t.closed:
		return 0, io.EOF
	}
}

func (t *scriptTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *scriptTransport) written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wrote.String()
}

// fakeServer is a minimal in-process memcached speaking the meta subset
// this client uses, backed by a map. It keeps just enough TTL state to
// exercise the touch path.
type fakeServer struct {
	mu    sync.Mutex
	items map[string]*fakeItem
}

type fakeItem struct {
	value  []byte
	expiry time.Time // zero = no expiry
}

func startFakeServer(t testing.TB) string {
	t.Helper()

	srv := &fakeServer{items: make(map[string]*fakeItem)}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start fake server: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go srv.serve(conn)
		}
	}()

	return listener.Addr().String()
}

func (s *fakeServer) serve(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(strings.TrimRight(line, "\r\n"))
		if len(fields) < 2 {
			fmt.Fprint(conn, "ERROR\r\n")
			continue
		}

		var reply string
		switch fields[0] {
		case "ms":
			reply, err = s.handleSet(reader, fields)
		case "mg":
			reply = s.handleGet(fields)
		case "md":
			reply = s.handleDelete(fields)
		case "ma":
			reply = s.handleArithmetic(fields)
		default:
			reply = "ERROR\r\n"
		}
		if err != nil {
			return
		}
		if _, err := io.WriteString(conn, reply); err != nil {
			return
		}
	}
}

// flagToken returns the token of the first flag with the given prefix
// letter among fields.
func flagToken(fields []string, letter byte) (string, bool) {
	for _, f := range fields {
		if f[0] == letter {
			return f[1:], true
		}
	}
	return "", false
}

func (s *fakeServer) expiryFromToken(tok string) time.Time {
	secs, err := strconv.ParseInt(tok, 10, 64)
	if err != nil || secs == 0 {
		return time.Time{}
	}
	if secs > 30*86400 {
		return time.Unix(secs, 0)
	}
	return time.Now().Add(time.Duration(secs) * time.Second)
}

// lookup returns the live item for key, reaping it if expired.
// Callers hold s.mu.
func (s *fakeServer) lookup(key string) *fakeItem {
	item, ok := s.items[key]
	if !ok {
		return nil
	}
	if !item.expiry.IsZero() && time.Now().After(item.expiry) {
		delete(s.items, key)
		return nil
	}
	return item
}

func (s *fakeServer) handleSet(reader *bufio.Reader, fields []string) (string, error) {
	key := fields[1]
	size, err := strconv.Atoi(fields[2])
	if err != nil {
		return "CLIENT_ERROR bad data chunk\r\n", nil
	}
	block := make([]byte, size+2)
	if _, err := io.ReadFull(reader, block); err != nil {
		return "", err
	}
	value := block[:size]

	mode, _ := flagToken(fields[3:], 'M')

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.lookup(key)
	var expiry time.Time
	if tok, ok := flagToken(fields[3:], 'T'); ok {
		expiry = s.expiryFromToken(tok)
	}

	switch mode {
	case "", "S":
		s.items[key] = &fakeItem{value: append([]byte(nil), value...), expiry: expiry}
		return "HD\r\n", nil
	case "E":
		if existing != nil {
			return "NS\r\n", nil
		}
		s.items[key] = &fakeItem{value: append([]byte(nil), value...), expiry: expiry}
		return "HD\r\n", nil
	case "R":
		if existing == nil {
			return "NS\r\n", nil
		}
		s.items[key] = &fakeItem{value: append([]byte(nil), value...), expiry: expiry}
		return "HD\r\n", nil
	case "A":
		if existing == nil {
			return "NS\r\n", nil
		}
		existing.value = append(existing.value, value...)
		return "HD\r\n", nil
	case "P":
		if existing == nil {
			return "NS\r\n", nil
		}
		existing.value = append(append([]byte(nil), value...), existing.value...)
		return "HD\r\n", nil
	default:
		return "CLIENT_ERROR invalid mode\r\n", nil
	}
}

func (s *fakeServer) handleGet(fields []string) string {
	key := fields[1]
	wantValue := false
	for _, f := range fields[2:] {
		if f == "v" {
			wantValue = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.lookup(key)
	if item == nil {
		return "EN\r\n"
	}
	if tok, ok := flagToken(fields[2:], 'T'); ok {
		item.expiry = s.expiryFromToken(tok)
	}
	if !wantValue {
		return "HD\r\n"
	}
	return fmt.Sprintf("VA %d\r\n%s\r\n", len(item.value), item.value)
}

func (s *fakeServer) handleDelete(fields []string) string {
	key := fields[1]

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup(key) == nil {
		return "NF\r\n"
	}
	delete(s.items, key)
	return "HD\r\n"
}

func (s *fakeServer) handleArithmetic(fields []string) string {
	key := fields[1]

	delta := uint64(1)
	if tok, ok := flagToken(fields[2:], 'D'); ok {
		d, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return "CLIENT_ERROR invalid delta\r\n"
		}
		delta = d
	}
	mode, _ := flagToken(fields[2:], 'M')
	wantValue := false
	for _, f := range fields[2:] {
		if f == "v" {
			wantValue = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.lookup(key)
	if item == nil {
		return "NF\r\n"
	}
	current, err := strconv.ParseUint(string(item.value), 10, 64)
	if err != nil {
		return "CLIENT_ERROR cannot increment or decrement non-numeric value\r\n"
	}

	switch mode {
	case "", "I", "+":
		current += delta
	case "D", "-":
		if delta > current {
			current = 0
		} else {
			current -= delta
		}
	default:
		return "CLIENT_ERROR invalid mode\r\n"
	}

	item.value = []byte(strconv.FormatUint(current, 10))
	if !wantValue {
		return "HD\r\n"
	}
	return fmt.Sprintf("VA %d\r\n%s\r\n", len(item.value), item.value)
}

// requireShutdown asserts err is a *ShutdownError.
func requireShutdown(t testing.TB, err error) *ShutdownError {
	t.Helper()
	var shutdown *ShutdownError
	if !errors.As(err, &shutdown) {
		t.Fatalf("error = %v (%T), want *ShutdownError", err, err)
	}
	return shutdown
}
