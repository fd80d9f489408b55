package scm

import (
	"encoding/hex"
	"hash/fnv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ContentHash reproduces spec §6's documented (non-cryptographic) digest:
// "a 40-hex repeat of an 8-hex FNV-like digest" — compute a 32-bit FNV-1a
// sum, hex-encode it to 8 characters, and repeat that string five times to
// reach the 40-hex length real git's SHA-1 object ids have, so downstream
// tooling that assumes a 40-hex id keeps working.
//
// When real is true, a cryptographic BLAKE2b-256 hash is used instead,
// truncated to 20 bytes (40 hex chars) for the same length compatibility —
// the real-hash mode (Config.RealHash; there is no command-line flag for
// it) that spec §9's Open Question names as the upgrade path
// "if cross-implementation interop with real git is ever required".
func ContentHash(data []byte, real bool) string {
	if real {
		sum := blake2b.Sum256(data)
		return hex.EncodeToString(sum[:20])
	}
	h := fnv.New32a()
	h.Write(data)
	digest := hex.EncodeToString(h.Sum(nil))
	return strings.Repeat(digest, 5)
}

// ShortHash abbreviates a content hash to 7 characters, the width `git
// log --oneline` and `git rev-parse --short` use (spec §8 scenario 8).
func ShortHash(hash string) string {
	if len(hash) < 7 {
		return hash
	}
	return hash[:7]
}
