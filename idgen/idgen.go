// Package idgen provides the identifier strategies used by textanchor.
//
// Selections carry short, time-ordered ids ("sel_<unix-ms>_<base36>") that
// survive a trip through any host storage; stored documents use UUIDv7.
// Every constructor that mints ids accepts a Generator so tests can pin them.
package idgen

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator that produces base-36 IDs of the given length.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every ID ("sel_", "kw_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Millis returns a Generator producing "<unix-ms>_<suffix>".
func Millis(gen Generator) Generator {
	return func() string {
		return strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + gen()
	}
}

// Sequence returns a deterministic Generator ("<prefix>1", "<prefix>2", ...)
// for fixtures and tests.
func Sequence(prefix string) Generator {
	n := 0
	return func() string {
		n++
		return prefix + strconv.Itoa(n)
	}
}

// Selection mints selection ids in the "sel_1765105497930_4tc60wwva" form.
var Selection Generator = Prefixed("sel_", Millis(NanoID(9)))

// Keyword mints ids for search-created highlights.
var Keyword Generator = Prefixed("kw_", Millis(NanoID(9)))

// Default is the generator for stored rows: UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a UUID string and returns it or an error.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID: %w", err)
	}
	return u.String(), nil
}
