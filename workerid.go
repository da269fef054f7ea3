package oxidation

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// WorkerID identifies the issuing node or process.
//
// It must be unique across all engines that can run concurrently against the
// same identifier space. The engine cannot verify this: operators own worker
// id assignment.
type WorkerID uint64

// String returns the decimal form of the worker id.
func (w WorkerID) String() string {
	return strconv.FormatUint(uint64(w), 10)
}

// Bytes returns the worker id as 8 big-endian bytes.
func (w WorkerID) Bytes() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(w))
	return b
}

// WorkerIDFromBytes interprets b as a big-endian unsigned integer.
//
// At most 8 bytes are accepted; wider input is a configuration error, never
// truncated. Whether the value fits a particular layout is checked when the
// engine is constructed.
func WorkerIDFromBytes(b []byte) (WorkerID, error) {
	if len(b) > 8 {
		return 0, newConfigError("WorkerID", fmt.Sprintf("%x", b), "too many bytes",
			"at most 8 bytes", ErrWorkerIDTooLarge)
	}
	var buf [8]byte
	copy(buf[8-len(b):], b)
	return WorkerID(binary.BigEndian.Uint64(buf[:])), nil
}

// HardwareWorkerID returns a 48-bit worker id derived from a network
// interface hardware address, suitable for LayoutWide.
//
// When no interface is available the node id is random for the life of the
// process, which weakens the uniqueness guarantee to a probabilistic one.
func HardwareWorkerID() WorkerID {
	node := uuid.NodeID()
	w, _ := WorkerIDFromBytes(node)
	return w
}

// HashWorkerID derives a worker id of the given bit width from a stable name
// such as a hostname or pod name. Distinct names may collide; the caller
// owns that risk. bits is clamped to 0..64.
func HashWorkerID(name string, bits int) WorkerID {
	sum := sha256.Sum256([]byte(name))
	return WorkerID(binary.BigEndian.Uint64(sum[:8]) & fieldMax(bits))
}

// ParseWorkerID parses a worker id from configuration text.
//
// Accepted forms:
//   - decimal: "42"
//   - hexadecimal: "0x2a"
//   - hardware address: "aa:bb:cc:dd:ee:ff"
//   - "hardware": HardwareWorkerID()
func ParseWorkerID(s string) (WorkerID, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return 0, newConfigError("WorkerID", s, "empty", "decimal, 0x hex, MAC address, or hardware", nil)
	case strings.EqualFold(s, "hardware"):
		return HardwareWorkerID(), nil
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		v, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, newConfigError("WorkerID", s, "invalid hexadecimal", "at most 64 bits", nil)
		}
		return WorkerID(v), nil
	case strings.ContainsAny(s, ":-."):
		hw, err := net.ParseMAC(s)
		if err != nil {
			return 0, newConfigError("WorkerID", s, "invalid hardware address", "aa:bb:cc:dd:ee:ff", nil)
		}
		return WorkerIDFromBytes(hw)
	}

	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, newConfigError("WorkerID", s, "invalid decimal", "at most 64 bits", nil)
	}
	return WorkerID(v), nil
}
