// Package parse contains the pure protocol parsers the detectors and the
// self-location resolver are built on: tshark probe-request lines, ARP
// table dumps, DHCP lease files (dnsmasq and ISC dhcpd), and NMEA GPS
// sentences. Every parser treats malformed input as data to skip, never as
// an error to raise.
package parse
