package validate

import "strings"

const (
	deviceIDMinLen = 10
	deviceIDMaxLen = 100
)

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// DeviceID checks the client-supplied fingerprint shape. It is the only
// identity key we have, so anything too short to be a fingerprint is
// rejected before it touches the ledger.
func DeviceID(value string) bool {
	trimmed := strings.TrimSpace(value)
	return len(trimmed) >= deviceIDMinLen && len(trimmed) <= deviceIDMaxLen
}
