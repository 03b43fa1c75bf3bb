package clipboard

import "hash/fnv"

// rollingHash is the "non-cryptographic 64-bit rolling hash" spec §4.7
// calls for. FNV-1a is exactly that: a fast, non-cryptographic, fixed-width
// hash with good avalanche behavior for short payloads, and it's what the
// standard library already ships for this job.
func rollingHash(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}
