package mural

import (
	"crypto/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
// Used for request and recipe identifiers.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewObjectID generates a board object id: millisecond timestamp plus an
// 8-char random base-36 suffix. Short enough to stay readable in board
// context listings, wide enough that collisions are not a practical concern.
func NewObjectID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return "obj-" + strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + string(buf)
}

// NowUnix returns current time as Unix seconds.
func NowUnix() int64 {
	return time.Now().Unix()
}
