package protocol

import (
	"encoding/binary"
	"fmt"
)

// EncodeLength serializes a body length into a size frame.
func EncodeLength(n uint64) []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

// DecodeLength deserializes a size frame. Bytes past HeaderSize are ignored.
func DecodeLength(data []byte) (uint64, error) {
	if len(data) < HeaderSize {
		return 0, Fail(ErrFrame, "decode length",
			fmt.Errorf("header too short: %d bytes (need %d)", len(data), HeaderSize))
	}
	return binary.BigEndian.Uint64(data[:HeaderSize]), nil
}
