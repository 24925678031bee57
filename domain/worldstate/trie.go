package worldstate

import (
	"sort"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/utils/hashes"
)

// computeStateRoot commits ws's three logical maps into a single Merkle
// commitment (spec.md §4.1's "state root"). Entries are sorted by key
// before hashing so the root is independent of Go's unordered map
// iteration and of insertion order — the property a real
// Merkle-Patricia trie gives for free and that the core's determinism
// invariant (spec.md §4.2) requires here too. The disk-resident trie
// encoding itself is a Non-goal (spec.md §1: "persistent storage engine
// internals"); this is the core's in-memory stand-in.
func computeStateRoot(ws *WorldState) externalapi.Hash {
	w := hashes.NewHashWriter("flowdag-state-root")

	assetRefs := make([]externalapi.AssetOutputRef, 0, len(ws.assets))
	for ref := range ws.assets {
		assetRefs = append(assetRefs, ref)
	}
	sort.Slice(assetRefs, func(i, j int) bool { return outputRefLess(assetRefs[i].OutputRef, assetRefs[j].OutputRef) })
	w.WriteUint32(uint32(len(assetRefs)))
	for _, ref := range assetRefs {
		w.WriteUint32(ref.Hint)
		w.WriteHash(&ref.Key)
		out := ws.assets[ref]
		var amountBytes [32]byte
		if out.Amount != nil {
			amountBytes = out.Amount.Bytes32()
		}
		w.WriteBytes(amountBytes[:])
	}

	contractRefs := make([]externalapi.ContractOutputRef, 0, len(ws.contractOutputs))
	for ref := range ws.contractOutputs {
		contractRefs = append(contractRefs, ref)
	}
	sort.Slice(contractRefs, func(i, j int) bool { return outputRefLess(contractRefs[i].OutputRef, contractRefs[j].OutputRef) })
	w.WriteUint32(uint32(len(contractRefs)))
	for _, ref := range contractRefs {
		w.WriteUint32(ref.Hint)
		w.WriteHash(&ref.Key)
	}

	contractIds := make([]externalapi.ContractId, 0, len(ws.contractState))
	for id := range ws.contractState {
		contractIds = append(contractIds, id)
	}
	sort.Slice(contractIds, func(i, j int) bool {
		a, b := externalapi.Hash(contractIds[i]), externalapi.Hash(contractIds[j])
		return a.Less(&b)
	})
	w.WriteUint32(uint32(len(contractIds)))
	for _, id := range contractIds {
		idHash := externalapi.Hash(id)
		w.WriteHash(&idHash)
		keys := make([]string, 0, len(ws.contractState[id]))
		for k := range ws.contractState[id] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w.WriteUint32(uint32(len(keys)))
		for _, k := range keys {
			w.WriteBytes([]byte(k))
			w.WriteBytes(ws.contractState[id][k])
		}
	}

	return *w.Finalize()
}

func outputRefLess(a, b externalapi.OutputRef) bool {
	if a.Hint != b.Hint {
		return a.Hint < b.Hint
	}
	return a.Key.Less(&b.Key)
}
