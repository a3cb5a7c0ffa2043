// Package hash computes the canonical content hashes used for result
// deduplication and for chaining ledger entries. Both digests are SHA-256;
// collision resistance matters because the same primitive backs the
// ledger's tamper-evidence chain.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/zeromine/zeromine/internal/contract"
)

// Prefix identifies the digest algorithm in serialized hashes.
const Prefix = "sha256:"

// canonicalResult is the normalized identity of a result. Volatile
// metadata (iteration counts, timestamps) is excluded so that two
// discoveries of the same root collide regardless of how they were found.
type canonicalResult struct {
	Method  string  `json:"method"`
	RootVal float64 `json:"root_val"`
	T       float64 `json:"t"`
}

// Result returns the canonical hash of a result payload.
func Result(p contract.ResultPayload) string {
	b, err := json.Marshal(canonicalResult{
		Method:  p.Meta.Method,
		RootVal: p.RootVal,
		T:       p.T,
	})
	if err != nil {
		// A struct of strings and floats cannot fail to marshal.
		panic(err)
	}
	return sum(nil, b)
}

// Chain returns the chaining digest for a ledger entry: a hash over the
// previous entry's digest and this entry's canonical serialization.
// prev is empty for the first entry.
func Chain(prev string, body []byte) string {
	return sum([]byte(prev), body)
}

func sum(prefix, body []byte) string {
	h := sha256.New()
	h.Write(prefix)
	h.Write(body)
	return Prefix + hex.EncodeToString(h.Sum(nil))
}
