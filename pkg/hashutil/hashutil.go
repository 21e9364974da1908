package hashutil

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

type HashAlgo string

const HashAlgoBLAKE3 HashAlgo = "blake3"

// ContentHash returns an algorithm-prefixed digest ("blake3:<hex>") used to
// tag fetched upstream bodies in fetch events, so identical responses can be
// spotted in the logs.
func ContentHash(data []byte) string {
	hash := blake3.Sum256(data)
	return string(HashAlgoBLAKE3) + ":" + hex.EncodeToString(hash[:])
}
