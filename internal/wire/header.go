package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Version is a schema version triple carried in every SuteraHeader.
type Version struct {
	Major uint16
	Minor uint16
	Patch uint16
}

// SchemaVersion is the schema this implementation speaks.
var SchemaVersion = Version{Major: 0, Minor: 1, Patch: 0}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

const versionSize = 6

func appendVersion(dst []byte, v Version) []byte {
	dst = binary.BigEndian.AppendUint16(dst, v.Major)
	dst = binary.BigEndian.AppendUint16(dst, v.Minor)
	return binary.BigEndian.AppendUint16(dst, v.Patch)
}

func parseVersion(buf []byte) (Version, int, error) {
	if len(buf) < versionSize {
		return Version{}, 0, errShort
	}
	return Version{
		Major: binary.BigEndian.Uint16(buf[0:2]),
		Minor: binary.BigEndian.Uint16(buf[2:4]),
		Patch: binary.BigEndian.Uint16(buf[4:6]),
	}, versionSize, nil
}

// headerAnchor marks the start of every logical message on the wire.
var headerAnchor = []byte("SuteraVR")

// SuteraHeader anchors a logical message and carries the sender's schema
// version.
type SuteraHeader struct {
	Version Version
}

// suteraHeaderSize is both the minimum and maximum encoded size.
const suteraHeaderSize = 8 + versionSize

func appendSuteraHeader(dst []byte, h SuteraHeader) []byte {
	dst = append(dst, headerAnchor...)
	return appendVersion(dst, h.Version)
}

// parseSuteraHeader decodes the anchor and version from the start of buf.
// It never consumes past the inspected prefix on failure.
func parseSuteraHeader(buf []byte) (SuteraHeader, int, error) {
	if len(buf) < suteraHeaderSize {
		return SuteraHeader{}, 0, errShort
	}
	if !bytes.Equal(buf[:len(headerAnchor)], headerAnchor) {
		return SuteraHeader{}, 0, errInvalid
	}
	v, _, err := parseVersion(buf[len(headerAnchor):])
	if err != nil {
		return SuteraHeader{}, 0, err
	}
	return SuteraHeader{Version: v}, suteraHeaderSize, nil
}

// anchoredAt reports whether a complete, valid SuteraHeader starts at buf.
// Used by the desync scanner.
func anchoredAt(buf []byte) bool {
	_, _, err := parseSuteraHeader(buf)
	return err == nil
}
