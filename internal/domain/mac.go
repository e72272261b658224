package domain

import (
	"fmt"
	"strings"
)

// CanonicalMAC normalizes a MAC address to six uppercase hex pairs joined
// by colons. Separators (colon, dash, dot) and case are accepted in any
// combination; anything that does not reduce to exactly 12 hex digits is
// rejected.
func CanonicalMAC(mac string) (string, error) {
	var hex strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(mac)) {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			hex.WriteRune(r)
		case r == ':', r == '-', r == '.':
			// separator, skip
		default:
			return "", fmt.Errorf("invalid MAC address %q", mac)
		}
	}

	s := hex.String()
	if len(s) != 12 {
		return "", fmt.Errorf("invalid MAC address %q", mac)
	}

	pairs := make([]string, 6)
	for i := 0; i < 6; i++ {
		pairs[i] = s[i*2 : i*2+2]
	}
	return strings.Join(pairs, ":"), nil
}

// MustCanonicalMAC is CanonicalMAC for inputs known to be valid, such as
// test fixtures. It panics on malformed input.
func MustCanonicalMAC(mac string) string {
	c, err := CanonicalMAC(mac)
	if err != nil {
		panic(err)
	}
	return c
}

// IsRandomizedMAC reports whether the address has the locally-administered
// bit set (bit 1 of the first octet), which randomizing clients use for
// software-assigned addresses. The true hardware address cannot be
// recovered from a randomized one; callers group by behavior instead.
func IsRandomizedMAC(mac string) bool {
	canon, err := CanonicalMAC(mac)
	if err != nil {
		return false
	}
	var first byte
	if _, err := fmt.Sscanf(canon[:2], "%02X", &first); err != nil {
		return false
	}
	return first&0x02 != 0
}

// OUIPrefix returns the first three octets of a canonical MAC address,
// identifying the manufacturer block. Returns "" for malformed input.
func OUIPrefix(mac string) string {
	canon, err := CanonicalMAC(mac)
	if err != nil {
		return ""
	}
	return canon[:8]
}
