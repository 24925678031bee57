package difficultymanager

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
)

// fakeChain is a minimal linear chain: block i's parent is block i-1,
// spaced by a fixed interval except where overridden, all sharing one
// target except where overridden.
type fakeChain struct {
	hashes     []*externalapi.Hash
	timestamps map[externalapi.Hash]int64
	targets    map[externalapi.Hash]*uint256.Int
}

func newFakeChain(n int, intervalMs int64, target *uint256.Int) *fakeChain {
	c := &fakeChain{
		timestamps: make(map[externalapi.Hash]int64),
		targets:    make(map[externalapi.Hash]*uint256.Int),
	}
	for i := 0; i < n; i++ {
		var raw [32]byte
		raw[31] = byte(i)
		raw[30] = byte(i >> 8)
		h := externalapi.NewHashFromByteArray(&raw)
		c.hashes = append(c.hashes, h)
		c.timestamps[*h] = int64(i) * intervalMs
		c.targets[*h] = target
	}
	return c
}

func (c *fakeChain) Contains(hash *externalapi.Hash) bool {
	_, ok := c.timestamps[*hash]
	return ok
}

func (c *fakeChain) Parent(hash *externalapi.Hash) (*externalapi.Hash, bool) {
	for i, h := range c.hashes {
		if h.Equal(hash) {
			if i == 0 {
				return nil, false
			}
			return c.hashes[i-1], true
		}
	}
	return nil, false
}

func (c *fakeChain) Height(hash *externalapi.Hash) (uint64, bool) {
	for i, h := range c.hashes {
		if h.Equal(hash) {
			return uint64(i), true
		}
	}
	return 0, false
}

func (c *fakeChain) TimestampMs(hash *externalapi.Hash) (int64, bool) {
	ts, ok := c.timestamps[*hash]
	return ts, ok
}

func (c *fakeChain) GetHashTarget(hash *externalapi.Hash) (*uint256.Int, bool) {
	t, ok := c.targets[*hash]
	return t, ok
}

func (c *fakeChain) MaxHeight() uint64 {
	return uint64(len(c.hashes) - 1)
}

func TestRequiredDifficultyBelowFirstWindowHoldsSteady(t *testing.T) {
	target := uint256.NewInt(1_000_000)
	chain := newFakeChain(10, defaultTargetIntervalMs, target)
	m := New(nil)
	m.windowSize = 2016

	parent := chain.hashes[len(chain.hashes)-1]
	got, err := m.RequiredDifficulty(chain, parent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(target) != 0 {
		t.Fatalf("expected target to hold steady below first window, got %s want %s", got, target)
	}
}

func TestRequiredDifficultyRetargetsAtWindowBoundary(t *testing.T) {
	windowSize := uint64(8)
	target := uint256.NewInt(1_000_000)
	// blocks arrive twice as fast as expected, so target should shrink.
	chain := newFakeChain(int(windowSize), defaultTargetIntervalMs/2, target)
	m := New(nil)
	m.windowSize = windowSize

	parent := chain.hashes[windowSize-1]
	got, err := m.RequiredDifficulty(chain, parent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(target) >= 0 {
		t.Fatalf("expected target to shrink when blocks arrive faster than expected, got %s want < %s", got, target)
	}
}

func TestRequiredDifficultyClampsToMaxRetargetFactor(t *testing.T) {
	windowSize := uint64(8)
	target := uint256.NewInt(1_000_000)
	// blocks arrive 100x slower than expected; retarget must clamp to 4x.
	chain := newFakeChain(int(windowSize), defaultTargetIntervalMs*100, target)
	m := New(nil)
	m.windowSize = windowSize

	parent := chain.hashes[windowSize-1]
	got, err := m.RequiredDifficulty(chain, parent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	upperBound := new(uint256.Int).Mul(target, uint256.NewInt(defaultMaxRetargetFactor))
	if got.Cmp(upperBound) != 0 {
		t.Fatalf("expected clamp to %dx parent target, got %s want %s", defaultMaxRetargetFactor, got, upperBound)
	}
}

func TestRequiredDifficultyClampsToMaxMiningTarget(t *testing.T) {
	windowSize := uint64(8)
	target := uint256.NewInt(1_000_000)
	chain := newFakeChain(int(windowSize), defaultTargetIntervalMs*100, target)
	maxMiningTarget := uint256.NewInt(1_500_000)
	m := New(maxMiningTarget)
	m.windowSize = windowSize

	parent := chain.hashes[windowSize-1]
	got, err := m.RequiredDifficulty(chain, parent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(maxMiningTarget) != 0 {
		t.Fatalf("expected clamp to maxMiningTarget, got %s want %s", got, maxMiningTarget)
	}
}
