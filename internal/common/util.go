package common

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// MakeRandHexString generates size random bytes and returns them hex-encoded,
// so the resulting string is 2*size characters long.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MakeTimeRandID returns an identifier made of the base36 unix-millisecond
// timestamp and 8 random bytes, e.g. "m2x1c9k0-9f2d4c3a5e6b1a7d".
func MakeTimeRandID(now time.Time) (string, error) {
	suffix, err := MakeRandHexString(8)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(now.UnixMilli(), 36) + "-" + suffix, nil
}
