// SPDX-License-Identifier: Apache-2.0

// Package hostports provides the default CryptoPort and ClockPort
// implementations used by the schemaplan CLI. The planning core in
// pkg/diff, pkg/plan and pkg/metadata never imports this package
// directly — it only depends on pkg/ports — so that it stays free of
// any concrete I/O.
package hostports

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/cloudflare/backoff"

	"github.com/schemaplan/core/pkg/ports"
)

const (
	maxBackoffDuration = 5 * time.Second
	backoffInterval    = 50 * time.Millisecond
	maxAttempts        = 3
)

// SHA256Crypto is the default CryptoPort. It retries a failing hash
// attempt a bounded number of times with jittered backoff before
// surfacing a ports.PortFailure.
type SHA256Crypto struct {
	// Fail, when non-nil, is consulted before each hash attempt and can
	// force a transient failure; used by tests to exercise the retry path.
	Fail func(attempt int) error
}

var _ ports.CryptoPort = (*SHA256Crypto)(nil)

func (c *SHA256Crypto) Hash(ctx context.Context, data []byte, algorithm string) (string, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if c.Fail != nil {
			if err := c.Fail(attempt); err != nil {
				lastErr = err
				if sleepErr := sleepCtx(ctx, b.Duration()); sleepErr != nil {
					return "", sleepErr
				}
				continue
			}
		}

		digest, err := hashBytes(algorithm, data)
		if err != nil {
			return "", &ports.PortFailure{Port: "crypto", Err: err}
		}
		return digest, nil
	}

	return "", &ports.PortFailure{Port: "crypto", Err: fmt.Errorf("hash failed after %d attempts: %w", maxAttempts, lastErr)}
}

func hashBytes(algorithm string, data []byte) (string, error) {
	switch algorithm {
	case "", "sha256":
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case "sha512":
		sum := sha512.Sum512(data)
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", errors.New("unsupported hash algorithm: " + algorithm)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// SystemClock is the default ClockPort, returning the current instant as
// RFC 3339 UTC with millisecond precision (matching the deployment tag
// grammar's expected timestamp shape).
type SystemClock struct{}

var _ ports.ClockPort = (*SystemClock)(nil)

func (SystemClock) Now(ctx context.Context) string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
