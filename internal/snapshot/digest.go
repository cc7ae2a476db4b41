package snapshot

import (
	"fmt"

	"github.com/minio/highwayhash"
)

// digestKey is the fixed 32-byte HighwayHash key so digests are stable
// across processes.
var digestKey = []byte("traveler snapshot digest key\x00\x00\x00\x00")

// Digest fingerprints the snapshot contents independently of insertion order.
// Equal datasets yield equal digests.
func Digest(s *Snapshot) (uint64, error) {
	h, err := highwayhash.New64(digestKey)
	if err != nil {
		return 0, fmt.Errorf("create digest hash: %w", err)
	}

	for _, iv := range s.Intervals() {
		line, marshalErr := iv.MarshalLine()
		if marshalErr != nil {
			return 0, marshalErr
		}

		h.Write(line)
		h.Write([]byte{'\n'})
	}

	return h.Sum64(), nil
}
