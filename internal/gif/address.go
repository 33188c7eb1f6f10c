package gif

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// Address is a 0x-prefixed, 20-byte hex contract address.
type Address string

// ZeroAddress is what the registry returns for names it does not know.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ParseAddress validates s and returns it as an Address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !addressPattern.MatchString(s) {
		return "", fmt.Errorf("invalid address %q: want 0x followed by 40 hex digits", s)
	}
	return Address(s), nil
}

// IsZero reports whether a is empty or the zero address.
func (a Address) IsZero() bool {
	return a == "" || strings.EqualFold(string(a), string(ZeroAddress))
}

// Equal compares two addresses ignoring hex case.
func (a Address) Equal(b Address) bool {
	return strings.EqualFold(string(a), string(b))
}

func (a Address) String() string { return string(a) }

// Bytes32 encodes an ASCII name into the 0x-prefixed, right-padded 32-byte
// form the registry and services key their entries by.
func Bytes32(name string) (string, error) {
	if name == "" {
		return "", errors.New("name must not be empty")
	}
	if len(name) > 32 {
		return "", fmt.Errorf("name %q is %d bytes long, at most 32 fit", name, len(name))
	}
	for i := 0; i < len(name); i++ {
		if name[i] > 0x7f {
			return "", fmt.Errorf("name %q contains non-ASCII characters", name)
		}
	}
	var buf [32]byte
	copy(buf[:], name)
	return "0x" + hex.EncodeToString(buf[:]), nil
}

// DecodeBytes32 is the inverse of Bytes32; trailing zero padding is dropped.
func DecodeBytes32(s string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid bytes32 %q: %w", s, err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("invalid bytes32 %q: got %d bytes", s, len(raw))
	}
	return strings.TrimRight(string(raw), "\x00"), nil
}

// ParseID parses a decimal, non-negative oracle or product id.
func ParseID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid id %q: not a decimal integer", s)
	}
	if id.Sign() < 0 {
		return nil, fmt.Errorf("invalid id %q: must not be negative", s)
	}
	return id, nil
}
