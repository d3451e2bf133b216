// Package meta implements the wire level of the memcached Meta Protocol
// subset this client speaks: mg, ms, md and ma.
//
// It is a foundation layer without connection management or business
// logic, focused on byte-exact serialization and incremental parsing.
//
// # Core types
//
// Request and Response are plain data containers:
//
//   - Request: a command (mg, ms, md, ma), key, optional data block,
//     pre-built flag bytes and a deferred TTL
//   - Response: a parsed status, echoed flags and optional value data
//
// # Serialization
//
// AppendRequest renders a request onto an outbound buffer:
//
//	req := meta.NewRequest(meta.CmdGet, "mykey", nil).AddReturnValue()
//	buf, err := meta.AppendRequest(buf, req)
//
// The TTL carried by a request is rendered here, at encode time, as the
// seconds remaining until its deadline, so time a request sat in a queue
// does not push the expiry past that deadline.
//
// # Parsing
//
// Parse consumes one frame from the front of a byte buffer and reports
// how many bytes it used, returning ErrNeedMore for incomplete frames:
//
//	resp, n, err := meta.Parse(buf)
//	if err == nil {
//	    buf = buf[n:]
//	}
//
// It is a pure function over the buffer, which makes it trivially safe
// against coalesced and split reads: feed it whatever chunks arrive.
//
// # Errors
//
//   - InvalidKeyError, ValueTooLargeError: rejected before hitting the wire
//   - ParseError: malformed frame, the stream can no longer be trusted
//   - ConnectionError: transport I/O failure
//   - ClientError, ServerError, GenericError: server error lines, carried
//     on Response.Error and scoped to a single request
package meta
