package worldstate

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/ruleerrors"
)

func sampleRef(b byte) *externalapi.AssetOutputRef {
	var arr [externalapi.HashSize]byte
	arr[0] = b
	return &externalapi.AssetOutputRef{OutputRef: externalapi.OutputRef{Hint: 0, Key: *externalapi.NewHashFromByteArray(&arr)}}
}

func TestCommitIsAtomic(t *testing.T) {
	ws := New()
	view := ws.Cached()
	ref := sampleRef(1)
	view.AddAsset(ref, &externalapi.AssetOutput{Amount: uint256.NewInt(10)})

	if _, err := ws.GetAsset(ref); err != ruleerrors.ErrKeyNotFound {
		t.Fatalf("expected parent WorldState to be unaffected before Commit")
	}

	committed, root, err := view.Commit()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root != committed.StateRoot() {
		t.Fatalf("expected returned root to match committed state root")
	}
	out, err := committed.GetAsset(ref)
	if err != nil {
		t.Fatalf("expected asset visible after commit: %v", err)
	}
	if out.Amount.Uint64() != 10 {
		t.Fatalf("expected amount 10, got %s", out.Amount)
	}
}

func TestRemoveAssetThenGetFails(t *testing.T) {
	ws := New()
	ref := sampleRef(2)
	view := ws.Cached()
	view.AddAsset(ref, &externalapi.AssetOutput{Amount: uint256.NewInt(5)})
	ws1, _, err := view.Commit()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view2 := ws1.Cached()
	view2.RemoveAsset(ref)
	if _, err := view2.GetAsset(ref); err != ruleerrors.ErrKeyNotFound {
		t.Fatalf("expected removed asset to read as not found within the same view")
	}
	ws2, _, err := view2.Commit()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ws2.GetAsset(ref); err != ruleerrors.ErrKeyNotFound {
		t.Fatalf("expected removed asset to be gone after commit")
	}
}

func TestStateRootChangesOnMutation(t *testing.T) {
	ws := New()
	root0 := ws.StateRoot()
	view := ws.Cached()
	view.AddAsset(sampleRef(3), &externalapi.AssetOutput{Amount: uint256.NewInt(1)})
	ws1, root1, err := view.Commit()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root0 == root1 {
		t.Fatalf("expected state root to change after adding an asset")
	}
	if ws1.StateRoot() != root1 {
		t.Fatalf("mismatched root bookkeeping")
	}
}
