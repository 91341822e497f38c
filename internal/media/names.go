package media

import (
	"runtime"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Characters that are not allowed in media file names.
const illegalChars = "[]><:\"/?*^\\|\x00\r\n"

// IsIllegalName reports whether name contains a character that cannot be
// used in the media folder.
func IsIllegalName(name string) bool {
	return strings.ContainsAny(name, illegalChars)
}

// NFCPolicy controls whether file names in the media folder are rewritten
// to Unicode NFC.
type NFCPolicy string

const (
	// NFCAuto normalises everywhere except on macOS, whose file systems
	// already normalise names on their own.
	NFCAuto    NFCPolicy = "auto"
	NFCEnforce NFCPolicy = "enforce"
	NFCSkip    NFCPolicy = "skip"
)

func (p NFCPolicy) renames() bool {
	switch p {
	case NFCEnforce:
		return true
	case NFCSkip:
		return false
	default:
		return runtime.GOOS != "darwin"
	}
}

func isNFC(s string) bool {
	return norm.NFC.IsNormalString(s)
}

func toNFC(s string) string {
	return norm.NFC.String(s)
}
