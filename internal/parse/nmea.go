package parse

import (
	"strconv"
	"strings"

	"whereabouts/internal/domain"
)

// NMEASentence routes a raw NMEA line to the right sentence parser. GGA
// sentences are preferred (they carry HDOP for an accuracy estimate); RMC
// is the fallback with a fixed 5 m accuracy. Other sentence types and
// malformed lines return nil.
func NMEASentence(line string) *domain.GeoLocation {
	sentence := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(sentence, "$GPGGA"), strings.HasPrefix(sentence, "$GNGGA"):
		return NMEAGGA(sentence)
	case strings.HasPrefix(sentence, "$GPRMC"), strings.HasPrefix(sentence, "$GNRMC"):
		return NMEARMC(sentence)
	default:
		return nil
	}
}

// NMEAGGA parses a GGA fix sentence:
//
//	$GPGGA,time,lat,N/S,lon,E/W,quality,sats,hdop,alt,M,geoid,M,age,ref*cs
//
// Fix quality 0 means no fix and yields nil. Accuracy is estimated as
// HDOP times 2.5 m, a typical consumer GPS figure.
func NMEAGGA(sentence string) *domain.GeoLocation {
	parts := splitSentence(sentence)
	if len(parts) < 10 {
		return nil
	}

	quality, err := strconv.Atoi(parts[6])
	if err != nil || quality == 0 {
		return nil
	}

	lat := nmeaCoordinate(parts[2], parts[3])
	lon := nmeaCoordinate(parts[4], parts[5])
	if lat == nil || lon == nil {
		return nil
	}

	hdop := 5.0
	if parts[8] != "" {
		if v, err := strconv.ParseFloat(parts[8], 64); err == nil {
			hdop = v
		}
	}

	return &domain.GeoLocation{Latitude: *lat, Longitude: *lon, Accuracy: hdop * 2.5}
}

// NMEARMC parses an RMC sentence:
//
//	$GPRMC,time,status,lat,N/S,lon,E/W,speed,course,date,mag,E/W*cs
//
// A status other than 'A' (active) yields nil. RMC carries no dilution
// figure, so accuracy is a fixed 5 m.
func NMEARMC(sentence string) *domain.GeoLocation {
	parts := splitSentence(sentence)
	if len(parts) < 8 {
		return nil
	}

	if parts[2] != "A" {
		return nil
	}

	lat := nmeaCoordinate(parts[3], parts[4])
	lon := nmeaCoordinate(parts[5], parts[6])
	if lat == nil || lon == nil {
		return nil
	}

	return &domain.GeoLocation{Latitude: *lat, Longitude: *lon, Accuracy: 5.0}
}

// nmeaCoordinate converts the NMEA DDMM.MMMM / DDDMM.MMMM form to decimal
// degrees, negated for southern/western hemispheres.
func nmeaCoordinate(coord, direction string) *float64 {
	if coord == "" || direction == "" {
		return nil
	}

	dot := strings.Index(coord, ".")
	if dot < 2 {
		return nil
	}

	degrees, err := strconv.Atoi(coord[:dot-2])
	if err != nil {
		return nil
	}
	minutes, err := strconv.ParseFloat(coord[dot-2:], 64)
	if err != nil {
		return nil
	}

	decimal := float64(degrees) + minutes/60.0
	if direction == "S" || direction == "W" {
		decimal = -decimal
	}
	return &decimal
}

func splitSentence(sentence string) []string {
	if i := strings.Index(sentence, "*"); i >= 0 {
		sentence = sentence[:i]
	}
	return strings.Split(sentence, ",")
}
