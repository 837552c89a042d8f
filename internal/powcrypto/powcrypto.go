// Package powcrypto implements the faucet's proof-of-work primitives:
// the canonical hash input, SHA-256 digest, leading-zero-bit difficulty
// check, cryptographically secure weighted selection for the Pool B
// lottery, Ethereum-style address validation, and block seed generation.
//
// Every function here is pure or touches only crypto/rand; none of it
// talks to storage, so there is nothing here for a third-party library to
// usefully replace beyond crypto/sha256, crypto/rand (the ecosystem's own
// canonical choice — see DESIGN.md) and holiman/uint256 for bit-counting
// over the 256-bit digest.
package powcrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// CanonicalInput builds the exact byte sequence the browser miner hashes:
// lowercase hex address || decimal block number || seed hex || nonce,
// concatenated with no separators. This must stay bit-exact for
// interoperability with the mining harness (SPEC_FULL.md §4.1).
func CanonicalInput(address string, blockNumber uint64, seedHex, nonce string) []byte {
	var b strings.Builder
	b.WriteString(strings.ToLower(address))
	b.WriteString(strconv.FormatUint(blockNumber, 10))
	b.WriteString(strings.ToLower(seedHex))
	b.WriteString(nonce)
	return []byte(b.String())
}

// Hash returns the SHA-256 digest of input along with its lowercase hex
// encoding.
func Hash(input []byte) (digest [32]byte, digestHex string) {
	digest = sha256.Sum256(input)
	digestHex = hex.EncodeToString(digest[:])
	return digest, digestHex
}

// LeadingZeroBits counts the number of leading zero bits in digest,
// treating it as a big-endian bit string. A hash of all zero bytes
// returns 256.
func LeadingZeroBits(digest [32]byte) int {
	v := new(uint256.Int).SetBytes(digest[:])
	if v.IsZero() {
		return 256
	}
	return 256 - v.BitLen()
}

// MeetsDifficulty reports whether digest has at least requiredBits
// leading zero bits.
func MeetsDifficulty(digest [32]byte, requiredBits int) bool {
	return LeadingZeroBits(digest) >= requiredBits
}

// ErrNoWeight is returned by callers that want to distinguish a
// zero-sum weight vector from a selection error; WeightedSelect itself
// just returns -1 in that case per spec.
var ErrNoWeight = errors.New("powcrypto: total weight is zero")

// WeightedSelect returns an index into weights chosen with probability
// proportional to weight, using a cryptographically secure random integer
// in [0, sum). It returns -1 when the sum of weights is zero. Ties are
// broken in favor of the lower index, a direct consequence of the
// cumulative-sum scan below — this must never be implemented with
// math/rand (SPEC_FULL.md §4.1, §9).
func WeightedSelect(weights []uint64) (int, error) {
	var total uint64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return -1, nil
	}

	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(total))
	if err != nil {
		return -1, err
	}
	draw := n.Uint64()

	var cumulative uint64
	for i, w := range weights {
		cumulative += w
		if draw < cumulative {
			return i, nil
		}
	}
	// Unreachable unless weights overflowed uint64 arithmetic above.
	return len(weights) - 1, nil
}

// ValidateAddress checks s against ^0x[0-9a-fA-F]{40}$ and returns the
// lowercased address. All storage keys and hash inputs use the lowercased
// form.
func ValidateAddress(s string) (string, bool) {
	if !addressPattern.MatchString(s) {
		return "", false
	}
	return strings.ToLower(s), true
}

// NewSeed generates a fresh 16-byte cryptographically secure seed,
// returned as lowercase hex.
func NewSeed() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
