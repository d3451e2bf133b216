package memcache

import (
	"context"
	"strconv"
	"unsafe"
)

// Codec translates between a caller value type and the raw bytes stored
// on the server.
//
// Numeric reports whether values render as ASCII decimal integers, which
// makes them eligible for the server-side arithmetic path (ma). Both the
// stored value and the caller's result type must be numeric for
// Increment/Decrement. TypedClient checks the codec and returns
// ErrTypeMismatch for a non-numeric one; it does not check the stored
// value, and a non-numeric stored value surfaces as the server's
// *meta.ClientError.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
	Numeric() bool
}

// BytesCodec stores byte slices verbatim.
type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) ([]byte, error) { return v, nil }
func (BytesCodec) Decode(b []byte) ([]byte, error) { return b, nil }
func (BytesCodec) Numeric() bool                   { return false }

// StringCodec stores strings as their UTF-8 bytes.
type StringCodec struct{}

func (StringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }
func (StringCodec) Decode(b []byte) (string, error) { return string(b), nil }
func (StringCodec) Numeric() bool                   { return false }

// UintCodec stores unsigned integers as ASCII decimal, the format the
// server's arithmetic operations require.
type UintCodec[T ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64] struct{}

func (UintCodec[T]) Encode(v T) ([]byte, error) {
	return strconv.AppendUint(nil, uint64(v), 10), nil
}

func (UintCodec[T]) Decode(b []byte) (T, error) {
	n, err := strconv.ParseUint(string(b), 10, bitSize[T]())
	if err != nil {
		var zero T
		return zero, err
	}
	return T(n), nil
}

func (UintCodec[T]) Numeric() bool { return true }

// IntCodec stores signed integers as ASCII decimal. Negative values
// still round-trip through Set/Get, but the server rejects them for
// arithmetic.
type IntCodec[T ~int | ~int8 | ~int16 | ~int32 | ~int64] struct{}

func (IntCodec[T]) Encode(v T) ([]byte, error) {
	return strconv.AppendInt(nil, int64(v), 10), nil
}

func (IntCodec[T]) Decode(b []byte) (T, error) {
	n, err := strconv.ParseInt(string(b), 10, bitSizeSigned[T]())
	if err != nil {
		var zero T
		return zero, err
	}
	return T(n), nil
}

func (IntCodec[T]) Numeric() bool { return true }

// bitSize reports the width of an unsigned integer type, so ParseUint
// rejects values the destination cannot hold.
func bitSize[T ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64]() int {
	var zero T
	return int(unsafe.Sizeof(zero)) * 8
}

func bitSizeSigned[T ~int | ~int8 | ~int16 | ~int32 | ~int64]() int {
	switch any(T(0)).(type) {
	case int8:
		return 8
	case int16:
		return 16
	case int32:
		return 32
	default:
		return 64
	}
}

// TypedClient layers a Codec over the byte-level Client, giving each
// operation a value type.
type TypedClient[T any] struct {
	client *Client
	codec  Codec[T]
}

// NewTypedClient wraps client with the given codec.
func NewTypedClient[T any](client *Client, codec Codec[T]) *TypedClient[T] {
	return &TypedClient[T]{client: client, codec: codec}
}

// Get retrieves and decodes the value stored under key.
// found is false on a miss. Codec failures return *DecodeError.
func (t *TypedClient[T]) Get(ctx context.Context, key string) (value T, found bool, err error) {
	var zero T
	raw, found, err := t.client.Get(ctx, key)
	if err != nil || !found {
		return zero, found, err
	}
	v, err := t.codec.Decode(raw)
	if err != nil {
		return zero, false, &DecodeError{Err: err}
	}
	return v, true, nil
}

// Set stores value under key, overwriting any existing item.
func (t *TypedClient[T]) Set(ctx context.Context, key string, value T, ttl TTL) error {
	raw, err := t.codec.Encode(value)
	if err != nil {
		return err
	}
	return t.client.Set(ctx, key, raw, ttl)
}

// Add stores value under key only if the key does not exist.
func (t *TypedClient[T]) Add(ctx context.Context, key string, value T, ttl TTL) error {
	raw, err := t.codec.Encode(value)
	if err != nil {
		return err
	}
	return t.client.Add(ctx, key, raw, ttl)
}

// Replace stores value under key only if the key already exists.
func (t *TypedClient[T]) Replace(ctx context.Context, key string, value T, ttl TTL) error {
	raw, err := t.codec.Encode(value)
	if err != nil {
		return err
	}
	return t.client.Replace(ctx, key, raw, ttl)
}

// Append appends value to the item stored under key.
func (t *TypedClient[T]) Append(ctx context.Context, key string, value T) error {
	raw, err := t.codec.Encode(value)
	if err != nil {
		return err
	}
	return t.client.Append(ctx, key, raw)
}

// Prepend prepends value to the item stored under key.
func (t *TypedClient[T]) Prepend(ctx context.Context, key string, value T) error {
	raw, err := t.codec.Encode(value)
	if err != nil {
		return err
	}
	return t.client.Prepend(ctx, key, raw)
}

// Delete removes the item stored under key.
func (t *TypedClient[T]) Delete(ctx context.Context, key string) error {
	return t.client.Delete(ctx, key)
}

// Touch updates the TTL of the item stored under key.
func (t *TypedClient[T]) Touch(ctx context.Context, key string, ttl TTL) error {
	return t.client.Touch(ctx, key, ttl)
}

// Increment adds delta to the stored value and returns the new value.
// Requires a numeric codec; ErrTypeMismatch otherwise.
func (t *TypedClient[T]) Increment(ctx context.Context, key string, delta uint64) (T, error) {
	return t.arithmetic(ctx, key, delta, t.client.Increment)
}

// Decrement subtracts delta from the stored value and returns the new
// value. Requires a numeric codec; ErrTypeMismatch otherwise.
func (t *TypedClient[T]) Decrement(ctx context.Context, key string, delta uint64) (T, error) {
	return t.arithmetic(ctx, key, delta, t.client.Decrement)
}

func (t *TypedClient[T]) arithmetic(
	ctx context.Context,
	key string,
	delta uint64,
	op func(context.Context, string, uint64) (uint64, error),
) (T, error) {
	var zero T
	if !t.codec.Numeric() {
		return zero, ErrTypeMismatch
	}
	n, err := op(ctx, key, delta)
	if err != nil {
		return zero, err
	}
	v, err := t.codec.Decode(strconv.AppendUint(nil, n, 10))
	if err != nil {
		return zero, &DecodeError{Err: err}
	}
	return v, nil
}
