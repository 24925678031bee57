package hashes

import (
	"sort"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
)

// Less reports whether a, interpreted as an unsigned big-endian integer,
// is strictly less than b. Thin wrapper over externalapi.Hash.Less, used
// by SortHashes, matching the teacher's own hashes.Less helper.
func Less(a, b *externalapi.Hash) bool {
	return a.Less(b)
}

// SortHashes sorts hashes in place in ascending order.
func SortHashes(hashes []*externalapi.Hash) {
	sort.Slice(hashes, func(i, j int) bool {
		return Less(hashes[i], hashes[j])
	})
}
