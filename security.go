package mural

import "strings"

const (
	// MaxFrameBytes is the largest websocket frame the hub accepts.
	MaxFrameBytes = 1 << 20 // 1 MiB
	// MaxObjectsPerBoard caps the object count of one room's document.
	MaxObjectsPerBoard = 5000
	// MaxCommandLen caps the length of a natural-language command.
	MaxCommandLen = 2000
	// MaxRoomNameLen caps the length of a room identifier.
	MaxRoomNameLen = 100
)

// OriginAllowed reports whether a websocket/HTTP origin passes the allow
// list. An empty list allows every origin; a missing origin header is
// allowed too (server-to-server clients send none). Entries are matched as
// substrings so "example.com" covers scheme and subdomain variants.
func OriginAllowed(origin, allowList string) bool {
	if strings.TrimSpace(allowList) == "" {
		return true
	}
	if origin == "" {
		return true
	}
	for _, entry := range strings.Split(allowList, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" && strings.Contains(origin, entry) {
			return true
		}
	}
	return false
}

// ValidRoomName reports whether s is a well-formed room id:
// 1-100 chars from [A-Za-z0-9_-].
func ValidRoomName(s string) bool {
	if len(s) < 1 || len(s) > MaxRoomNameLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}

// FrameWithinLimit reports whether a frame payload is within the size cap.
func FrameWithinLimit(frame []byte) bool {
	return len(frame) <= MaxFrameBytes
}

// CanAddObject reports whether a board with the given object count may take
// one more object.
func CanAddObject(currentCount int) bool {
	return currentCount < MaxObjectsPerBoard
}

// ValidCommand reports whether an AI command is non-empty and within the
// length cap.
func ValidCommand(s string) bool {
	return len(s) > 0 && len(s) <= MaxCommandLen
}
