package meta

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

// ttlToken encodes a get request with the given TTL and extracts the T token.
func ttlToken(t *testing.T, ttl TTL) (string, bool) {
	t.Helper()
	buf, err := AppendRequest(nil, NewRequest(CmdGet, "k", nil).WithTTL(ttl))
	if err != nil {
		t.Fatalf("AppendRequest failed: %v", err)
	}
	line := strings.TrimSuffix(string(buf), CRLF)
	for _, tok := range strings.Fields(line)[2:] {
		if tok[0] == byte(FlagTTL) {
			return tok[1:], true
		}
	}
	return "", false
}

func TestTTLDefaultRendersNothing(t *testing.T) {
	buf, err := AppendRequest(nil, NewRequest(CmdGet, "k", nil).WithTTL(TTL{}))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(buf); got != "mg k\r\n" {
		t.Errorf("default TTL rendered flags: %q", got)
	}
	if !(TTL{}).IsZero() {
		t.Error("zero TTL should report IsZero")
	}
}

func TestTTLIndefinite(t *testing.T) {
	tok, ok := ttlToken(t, Indefinite)
	if !ok || tok != "0" {
		t.Errorf("indefinite TTL token = %q, %v; want \"0\"", tok, ok)
	}
	if Indefinite.IsZero() {
		t.Error("Indefinite should not report IsZero")
	}
}

func TestTTLRelativeSeconds(t *testing.T) {
	tok, ok := ttlToken(t, ExpiresIn(60*time.Second))
	if !ok {
		t.Fatal("no T token rendered")
	}
	if tok != "60" {
		t.Errorf("TTL token = %q, want \"60\"", tok)
	}
}

func TestTTLClampsToOneSecond(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Minute, 10 * time.Millisecond} {
		tok, ok := ttlToken(t, ExpiresIn(d))
		if !ok {
			t.Fatalf("no T token rendered for %v", d)
		}
		if tok != "1" {
			t.Errorf("ExpiresIn(%v) token = %q, want \"1\"", d, tok)
		}
	}
}

func TestTTLThirtyDayBoundary(t *testing.T) {
	// Exactly 30 days still renders relative.
	tok, ok := ttlToken(t, ExpiresIn(30*86400*time.Second))
	if !ok {
		t.Fatal("no T token rendered")
	}
	if tok != "2592000" {
		t.Errorf("30-day TTL token = %q, want \"2592000\"", tok)
	}
}

func TestTTLBeyondThirtyDaysRendersUnixTimestamp(t *testing.T) {
	deadline := time.Now().Add(30*86400*time.Second + time.Hour)
	tok, ok := ttlToken(t, ExpiresAt(deadline))
	if !ok {
		t.Fatal("no T token rendered")
	}
	got, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		t.Fatalf("token %q is not an integer: %v", tok, err)
	}
	if got != deadline.Unix() {
		t.Errorf("token = %d, want absolute timestamp %d", got, deadline.Unix())
	}
}

func TestTTLRenderedAtEncodeTime(t *testing.T) {
	// A request built early renders the time remaining until its fixed
	// deadline when encoded later: 2s minus the 1.1s wait rounds up to 1.
	req := NewRequest(CmdGet, "k", nil).WithTTL(ExpiresIn(2 * time.Second))
	time.Sleep(1100 * time.Millisecond)
	buf, err := AppendRequest(nil, req)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(buf); got != "mg k T1\r\n" {
		t.Errorf("encoded = %q, want remaining 1s", got)
	}
}
