package utils

import (
	"crypto/sha256"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Sha256 returns the SHA-256 digest of the concatenation of parts.
func Sha256(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// ZerologConsoleWriter returns a console writer for zerolog
func ZerologConsoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
}
