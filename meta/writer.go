package meta

import (
	"strconv"
)

// ValidateKey checks if a key is valid for the memcache protocol.
// Keys must be 1-250 bytes with no whitespace or control bytes.
func ValidateKey(key string) error {
	keyLen := len(key)

	if keyLen < MinKeyLength {
		return &InvalidKeyError{Message: "key is empty"}
	}

	if keyLen > MaxKeyLength {
		return &InvalidKeyError{Message: "key exceeds maximum length of 250 bytes"}
	}

	for i := 0; i < keyLen; i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return &InvalidKeyError{Message: "key contains whitespace or control characters"}
		}
	}

	return nil
}

// AppendRequest serializes req to wire format and appends it to dst,
// returning the extended buffer.
//
// Format: <command> <key> [<size>] <flags>*\r\n[<data>\r\n]
//
//	ms <key> <size> <flags>*\r\n<data>\r\n
//	mg|md|ma <key> <flags>*\r\n
//
// Flag order follows the flags table: v, T, M, J, D. Builder flags keep
// their build order (callers add them in table order), and the TTL token
// is spliced into its table slot here - after a leading v flag, before
// everything else - because its seconds value is computed against the
// clock at encode time, not build time.
//
// The key is validated before anything is appended. On error dst is
// returned unchanged.
func AppendRequest(dst []byte, req *Request) ([]byte, error) {
	if err := ValidateKey(req.Key); err != nil {
		return dst, err
	}

	dst = append(dst, req.Command...)
	dst = append(dst, ' ')
	dst = append(dst, req.Key...)

	if req.Command == CmdSet {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(len(req.Data)), 10)
	}

	flags := req.Flags
	if len(flags) >= 2 && flags[0] == ' ' && flags[1] == byte(FlagReturnValue) &&
		(len(flags) == 2 || flags[2] == ' ') {
		dst = append(dst, flags[:2]...)
		flags = flags[2:]
	}
	dst = req.TTL.appendFlag(dst)
	dst = append(dst, flags...)
	dst = append(dst, CRLF...)

	if req.Command == CmdSet {
		dst = append(dst, req.Data...)
		dst = append(dst, CRLF...)
	}

	return dst, nil
}
