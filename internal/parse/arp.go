package parse

import (
	"regexp"

	"whereabouts/internal/domain"
)

// arpEntryPattern matches "arp -n" output rows: an IPv4 address, hardware
// type, flags, then the MAC address.
var arpEntryPattern = regexp.MustCompile(`(\d+\.\d+\.\d+\.\d+)\s+\S+\s+\S+\s+([0-9a-fA-F:]{17})`)

// zeroMAC marks an incomplete ARP entry (request sent, no reply yet).
const zeroMAC = "00:00:00:00:00:00"

// ARPEntry is one resolved (ip, mac) pair from the kernel ARP table.
type ARPEntry struct {
	IP  string
	MAC string
}

// ARPTable extracts resolved entries from "arp -n" style output. Incomplete
// entries (all-zero MAC) and unparsable lines are skipped.
func ARPTable(output string) []ARPEntry {
	var entries []ARPEntry
	for _, m := range arpEntryPattern.FindAllStringSubmatch(output, -1) {
		mac, err := domain.CanonicalMAC(m[2])
		if err != nil || mac == zeroMAC {
			continue
		}
		entries = append(entries, ARPEntry{IP: m[1], MAC: mac})
	}
	return entries
}
