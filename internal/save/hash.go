package save

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Hash produces the integrity checksum for a serialized snapshot.
// xxhash is not cryptographic and does not need to be: the checksum exists
// to catch corruption and truncation on read-back, never to resist tampering.
func Hash(payload []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(payload))
}
