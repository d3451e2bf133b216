package meta

import (
	"strconv"
)

// Request represents a meta protocol request.
// This is a low-level container for request data without serialization
// logic. Fields map directly to protocol elements.
//
// See CmdGet, CmdSet, CmdDelete and CmdArithmetic for valid flags and
// typical usage patterns.
type Request struct {
	// Command is the 2-character command code: mg, ms, md, ma
	Command CmdType

	// Key is the cache key (1-250 bytes, no whitespace or control bytes)
	Key string

	// Data is the value to store (for ms command only).
	// Size is derived from len(Data), not stored separately.
	Data []byte

	// Flags is the serialized flags representation.
	//
	// It contains the exact bytes that appear after the key/size on the
	// wire, including the leading spaces (e.g. " v" or " MI D5").
	// Add flags in table order (v, M, J, D); the encoder splices the T
	// token into its slot between v and M.
	Flags Flags

	// TTL is rendered as the T flag, in its slot after a leading v, when
	// the request is encoded, not when it is built, so the
	// seconds-remaining token reflects send time.
	TTL TTL
}

// Flags is a serialized representation of meta protocol flags.
//
// The zero value is ready to use.
//
// It is optimized for:
//   - building flags with minimal allocations (integers append directly)
//   - cheap encoding (a single write of the raw bytes)
//   - simple lookup via linear scan (flag lists are short)
type Flags []byte

func (f Flags) IsEmpty() bool {
	return len(f) == 0
}

func (f *Flags) Reset() {
	*f = (*f)[:0]
}

func (f *Flags) Add(flagType FlagType) {
	*f = append(*f, ' ', byte(flagType))
}

func (f *Flags) AddTokenString(flagType FlagType, token string) {
	*f = append(*f, ' ', byte(flagType))
	*f = append(*f, token...)
}

func (f *Flags) AddInt64(flagType FlagType, value int64) {
	*f = append(*f, ' ', byte(flagType))
	*f = strconv.AppendInt(*f, value, 10)
}

func (f *Flags) AddUint64(flagType FlagType, value uint64) {
	*f = append(*f, ' ', byte(flagType))
	*f = strconv.AppendUint(*f, value, 10)
}

func (f Flags) Has(flagType FlagType) bool {
	_, ok := f.Get(flagType)
	return ok
}

// Get returns the token value for the first flag of the given type.
//
// ok is true if the flag is present.
// token is nil if the flag is present but has no token.
func (f Flags) Get(flagType FlagType) (token []byte, ok bool) {
	for i := 0; i < len(f); {
		for i < len(f) && f[i] == ' ' {
			i++
		}
		if i >= len(f) {
			return nil, false
		}

		t := FlagType(f[i])
		i++

		start := i
		for i < len(f) && f[i] != ' ' {
			i++
		}

		if t == flagType {
			if start == i {
				return nil, true
			}
			return f[start:i], true
		}
	}
	return nil, false
}

// NewRequest creates a new meta protocol request.
//
// The key and data parameters are used according to the command type:
//   - CmdGet, CmdDelete, CmdArithmetic: key required, data ignored
//   - CmdSet: key and data required
//
// Use the Add* methods to attach flags after creation:
//
//	req := NewRequest(CmdGet, "mykey", nil).AddReturnValue()
func NewRequest(cmd CmdType, key string, data []byte) *Request {
	return &Request{
		Command: cmd,
		Key:     key,
		Data:    data,
	}
}

// HasFlag checks if the request contains a flag of the given type.
func (r *Request) HasFlag(flagType FlagType) bool {
	return r.Flags.Has(flagType)
}

// GetFlagToken returns the token value for the first flag of the given type.
func (r *Request) GetFlagToken(flagType FlagType) (token []byte, ok bool) {
	return r.Flags.Get(flagType)
}

// WithTTL attaches a TTL, rendered as the T flag (after a leading v,
// before the other flags) at encode time.
func (r *Request) WithTTL(ttl TTL) *Request {
	r.TTL = ttl
	return r
}

// --- Typed flag methods ---
// All Add* methods return *Request for fluent chaining.

func (r *Request) AddReturnValue() *Request { r.Flags.Add(FlagReturnValue); return r }
func (r *Request) AddQuiet() *Request       { r.Flags.Add(FlagQuiet); return r }

func (r *Request) AddOpaque(token string) *Request {
	r.Flags.AddTokenString(FlagOpaque, token)
	return r
}

// Set-specific flags

func (r *Request) AddModeAdd() *Request     { r.Flags.AddTokenString(FlagMode, ModeAdd); return r }
func (r *Request) AddModeReplace() *Request { r.Flags.AddTokenString(FlagMode, ModeReplace); return r }
func (r *Request) AddModeAppend() *Request  { r.Flags.AddTokenString(FlagMode, ModeAppend); return r }
func (r *Request) AddModePrepend() *Request { r.Flags.AddTokenString(FlagMode, ModePrepend); return r }

// Arithmetic-specific flags

func (r *Request) AddDelta(amount uint64) *Request {
	r.Flags.AddUint64(FlagDelta, amount)
	return r
}

func (r *Request) AddInitialValue(value uint64) *Request {
	r.Flags.AddUint64(FlagInitialValue, value)
	return r
}

func (r *Request) AddVivify(seconds int64) *Request {
	r.Flags.AddInt64(FlagVivify, seconds)
	return r
}

func (r *Request) AddModeIncrement() *Request {
	r.Flags.AddTokenString(FlagMode, ModeIncrement)
	return r
}

func (r *Request) AddModeDecrement() *Request {
	r.Flags.AddTokenString(FlagMode, ModeDecrement)
	return r
}
