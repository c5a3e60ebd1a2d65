//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

// Package env implements global environment for the secret-shared VM.
package env

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20"
)

// DefaultRoundTimeout is the default time a party waits for the
// messages of one protocol round.
const DefaultRoundTimeout = 30 * time.Second

// Config defines the global system configuration. It configures
// system operation for all modules. Config must not be modified after
// being passed to any module. It is safe for concurrent use by
// multiple modules as they do not modify it.
type Config struct {
	// Rand is the source of entropy for seeds, input sharing and
	// masks. If unset, crypto/rand is used.
	Rand io.Reader

	// RoundTimeout limits the time one communication round can
	// take. Zero means DefaultRoundTimeout and a negative value
	// disables the timeout.
	RoundTimeout time.Duration

	// Logger receives structured log events. The zero value
	// discards all events.
	Logger *zerolog.Logger

	// Unbatched disables multiplication batching; every secure
	// multiplication is then flushed in its own round.
	Unbatched bool
}

// GetRandom returns the source of entropy for seeds, sharing and
// other cryptography operations.
func (config *Config) GetRandom() io.Reader {
	if config != nil && config.Rand != nil {
		return config.Rand
	}
	return rand.Reader
}

// GetRoundTimeout returns the effective round timeout. The result is
// zero if rounds have no timeout.
func (config *Config) GetRoundTimeout() time.Duration {
	if config == nil || config.RoundTimeout == 0 {
		return DefaultRoundTimeout
	}
	if config.RoundTimeout < 0 {
		return 0
	}
	return config.RoundTimeout
}

// GetLogger returns the configured logger or a disabled logger.
func (config *Config) GetLogger() zerolog.Logger {
	if config == nil || config.Logger == nil {
		return zerolog.Nop()
	}
	return *config.Logger
}

// SeededRand returns a deterministic random stream derived from
// seed. The stream is a ChaCha20 keystream keyed with the BLAKE3 hash
// of the seed. It is intended for tests and reproducible runs only.
func SeededRand(seed []byte) io.Reader {
	key := blake3.Sum256(seed)
	var nonce [chacha20.NonceSize]byte
	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		// Key and nonce sizes are constants.
		panic(err)
	}
	return &stream{
		cipher: cipher,
	}
}

type stream struct {
	cipher *chacha20.Cipher
}

func (s *stream) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	s.cipher.XORKeyStream(p, p)
	return len(p), nil
}
