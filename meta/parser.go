package meta

import (
	"bytes"
	"errors"
	"strconv"
)

// ErrNeedMore is returned by Parse when the buffer does not yet hold a
// complete frame. The caller should read more bytes and call again; no
// input is consumed.
var ErrNeedMore = errors.New("memcache: need more data")

// maxParseDataSize rejects VA sizes no real server emits. Memcached's
// item size limit tops out at 1 GiB.
const maxParseDataSize = 1 << 30

var (
	crlfBytes         = []byte(CRLF)
	errorGenericBytes = []byte(ErrorGeneric)
	clientErrorPrefix = []byte(ErrorClientPrefix + " ")
	serverErrorPrefix = []byte(ErrorServerPrefix + " ")
)

// Parse consumes one response frame from the front of data.
//
// It returns the parsed Response and the number of bytes consumed. The
// function is pure: it holds no state between calls, so the caller owns
// the buffer and its cursor. Coalesced and arbitrarily split input is
// handled by calling Parse in a loop and appending new reads to data.
//
//	resp, n, err := meta.Parse(buf)
//	switch {
//	case errors.Is(err, meta.ErrNeedMore):
//	    // read more, keep buf
//	case err != nil:
//	    // malformed frame, stream unusable
//	default:
//	    buf = buf[n:]
//	}
//
// ErrNeedMore is returned when the frame header has no terminator yet, or
// when a VA header is complete but the declared data block (plus its
// trailing CRLF) has not fully arrived; in both cases nothing is
// consumed. A *ParseError is returned for header lines over
// MaxLineLength, non-numeric or negative VA lengths, and missing
// data-block terminators.
//
// Server error lines (ERROR, CLIENT_ERROR, SERVER_ERROR) parse
// successfully into a Response with Error set, so they fail only the
// request they answer.
//
// Unknown status tokens are returned as-is; classifying them is the
// caller's concern.
//
// Response.Data is copied out of data, so the buffer may be reused as
// soon as Parse returns.
func Parse(data []byte) (*Response, int, error) {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		if len(data) > MaxLineLength {
			return nil, 0, &ParseError{Message: "response line exceeds length cap"}
		}
		return nil, 0, ErrNeedMore
	}
	if idx > MaxLineLength {
		return nil, 0, &ParseError{Message: "response line exceeds length cap"}
	}

	advance := idx + 1
	line := data[:idx]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}

	// Legacy error lines answer the in-flight request; they are data,
	// not parse failures.
	if bytes.HasPrefix(line, clientErrorPrefix) {
		return &Response{Error: &ClientError{Message: string(line[len(clientErrorPrefix):])}}, advance, nil
	}
	if bytes.HasPrefix(line, serverErrorPrefix) {
		return &Response{Error: &ServerError{Message: string(line[len(serverErrorPrefix):])}}, advance, nil
	}
	if bytes.Equal(line, errorGenericBytes) {
		return &Response{Error: &GenericError{Message: ErrorGeneric}}, advance, nil
	}

	if len(line) == 0 {
		return nil, 0, &ParseError{Message: "empty response line"}
	}

	statusEnd := bytes.IndexByte(line, ' ')
	if statusEnd == -1 {
		statusEnd = len(line)
	}
	if statusEnd == 0 {
		return nil, 0, &ParseError{Message: "missing status token"}
	}

	resp := &Response{
		Status: StatusType(line[:statusEnd]),
	}

	pos := statusEnd

	var dataSize int
	if resp.Status == StatusVA {
		for pos < len(line) && line[pos] == ' ' {
			pos++
		}

		sizeEnd := bytes.IndexByte(line[pos:], ' ')
		var sizeBytes []byte
		if sizeEnd == -1 {
			sizeBytes = line[pos:]
			pos = len(line)
		} else {
			sizeBytes = line[pos : pos+sizeEnd]
			pos += sizeEnd
		}

		if len(sizeBytes) == 0 {
			return nil, 0, &ParseError{Message: "VA response missing size"}
		}

		size, err := strconv.Atoi(string(sizeBytes))
		if err != nil {
			return nil, 0, &ParseError{Message: "invalid size in VA response", Err: err}
		}
		if size < 0 {
			return nil, 0, &ParseError{Message: "negative size in VA response"}
		}
		if size > maxParseDataSize {
			return nil, 0, &ParseError{Message: "VA size exceeds sanity cap"}
		}
		dataSize = size
	}

	// Remaining tokens are flag echoes.
	for pos < len(line) {
		for pos < len(line) && line[pos] == ' ' {
			pos++
		}
		if pos >= len(line) {
			break
		}

		flagEnd := bytes.IndexByte(line[pos:], ' ')
		var flagBytes []byte
		if flagEnd == -1 {
			flagBytes = line[pos:]
			pos = len(line)
		} else {
			flagBytes = line[pos : pos+flagEnd]
			pos += flagEnd
		}

		flag := Flag{Type: FlagType(flagBytes[0])}
		if len(flagBytes) > 1 {
			flag.Token = string(flagBytes[1:])
		}
		resp.Flags = append(resp.Flags, flag)
	}

	if resp.Status == StatusVA {
		// The header stays buffered until the whole data block arrives.
		end := advance + dataSize + len(CRLF)
		if len(data) < end {
			return nil, 0, ErrNeedMore
		}
		if !bytes.Equal(data[advance+dataSize:end], crlfBytes) {
			return nil, 0, &ParseError{Message: "invalid data block terminator"}
		}
		resp.Data = make([]byte, dataSize)
		copy(resp.Data, data[advance:advance+dataSize])
		advance = end
	}

	return resp, advance, nil
}
