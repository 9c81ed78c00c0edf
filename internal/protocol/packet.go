// Package protocol defines the wire format of a ferry transfer:
//
//	size frame   HeaderSize bytes, unsigned big-endian total file length
//	body         raw file bytes, chunk boundaries unspecified
//	status       short free-form text sent back by the receiver
//
// There is no version field, checksum or multiplexing.
package protocol

import "fmt"

// HeaderSize is the fixed width of the size frame.
const HeaderSize = 8

// MaxStatusSize bounds the status frame the receiver sends back.
const MaxStatusSize = 1024

// DefaultChunkSize is the body chunk size used when none is configured.
const DefaultChunkSize = 4096

// StatusReceived is the default acknowledgment sent after a complete body.
const StatusReceived = "File received"

// BackupStatus returns the acknowledgment for a transfer persisted as the
// given backup version.
func BackupStatus(version uint64) string {
	return fmt.Sprintf("Version %d Backup Complete!", version)
}
