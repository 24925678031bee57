// Package difficultymanager implements spec.md §4.4's validateWorkTarget
// retarget algorithm: recompute the expected target for the block that
// follows a given parent, so blockvalidator can compare it against
// header.target. Adapted from the teacher's difficultymanager shape (a
// Manager struct wrapping chain lookups, exposing one RequiredDifficulty
// method), generalized from kaspad's GHOSTDAG/DAA-score window to a
// simple per-chain height window, following the classic Bitcoin-style
// bounded retarget spec.md §9 leaves unspecified in detail.
package difficultymanager

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
)

// ChainReader is the capability set spec.md §9's design notes assign to
// per-pair chain logic: {contains, parent, height, getHashTarget,
// maxHeight}, plus the per-block timestamp the retarget algorithm's
// actual/expected time ratio needs.
type ChainReader interface {
	Contains(hash *externalapi.Hash) bool
	Parent(hash *externalapi.Hash) (*externalapi.Hash, bool)
	Height(hash *externalapi.Hash) (uint64, bool)
	TimestampMs(hash *externalapi.Hash) (int64, bool)
	GetHashTarget(hash *externalapi.Hash) (*uint256.Int, bool)
	MaxHeight() uint64
}

// Manager computes the required target for the next block of a chain.
type Manager struct {
	windowSize       uint64
	targetIntervalMs int64
	maxRetargetFactor uint64
	maxMiningTarget  *uint256.Int
}

// New builds a Manager. maxMiningTarget bounds every target this Manager
// ever returns (spec.md §6's configured maxMiningTarget).
func New(maxMiningTarget *uint256.Int) *Manager {
	return &Manager{
		windowSize:        defaultWindowSize,
		targetIntervalMs:  defaultTargetIntervalMs,
		maxRetargetFactor: defaultMaxRetargetFactor,
		maxMiningTarget:   maxMiningTarget,
	}
}

const (
	defaultWindowSize        = 2016
	defaultTargetIntervalMs  = 10 * 60 * 1000
	defaultMaxRetargetFactor = 4
)

// RequiredDifficulty returns the target the block that extends parentHash
// must carry. Below the first window, every chain inherits its genesis
// target unchanged (no window to measure yet); within a window, the
// target holds steady at the window's starting value; only at a window
// boundary does the algorithm measure actual vs expected elapsed time and
// retarget, clamped to [parentTarget/maxRetargetFactor,
// parentTarget*maxRetargetFactor] and to maxMiningTarget.
func (m *Manager) RequiredDifficulty(chain ChainReader, parentHash *externalapi.Hash) (*uint256.Int, error) {
	parentTarget, ok := chain.GetHashTarget(parentHash)
	if !ok {
		return nil, errMissingParent
	}
	parentHeight, ok := chain.Height(parentHash)
	if !ok {
		return nil, errMissingParent
	}

	nextHeight := parentHeight + 1
	if nextHeight < m.windowSize || nextHeight%m.windowSize != 0 {
		return parentTarget, nil
	}

	windowStart := parentHash
	for i := uint64(0); i < m.windowSize-1; i++ {
		prev, ok := chain.Parent(windowStart)
		if !ok {
			return parentTarget, nil
		}
		windowStart = prev
	}

	startTs, ok := chain.TimestampMs(windowStart)
	if !ok {
		return parentTarget, nil
	}
	endTs, ok := chain.TimestampMs(parentHash)
	if !ok {
		return parentTarget, nil
	}

	actualMs := endTs - startTs
	if actualMs <= 0 {
		actualMs = 1
	}
	expectedMs := m.targetIntervalMs * int64(m.windowSize-1)

	newTarget := retarget(parentTarget, actualMs, expectedMs, m.maxRetargetFactor)
	if m.maxMiningTarget != nil && newTarget.Cmp(m.maxMiningTarget) > 0 {
		newTarget = m.maxMiningTarget
	}
	return newTarget, nil
}

// retarget computes parentTarget * actualMs / expectedMs, clamped to
// [parentTarget/factor, parentTarget*factor]. Done in math/big rather
// than uint256 directly: parentTarget*actualMs can exceed 256 bits for
// targets near the top of the range, and uint256 has no checked-multiply
// that reports a precise intermediate rather than just overflowing; big.Int
// computes the exact product before the final divide, then the result is
// clamped back into uint256's range.
func retarget(parentTarget *uint256.Int, actualMs, expectedMs int64, factor uint64) *uint256.Int {
	parentBig := parentTarget.ToBig()

	newBig := new(big.Int).Mul(parentBig, big.NewInt(actualMs))
	newBig.Div(newBig, big.NewInt(expectedMs))

	upperBig := new(big.Int).Mul(parentBig, new(big.Int).SetUint64(factor))
	lowerBig := new(big.Int).Div(parentBig, new(big.Int).SetUint64(factor))

	if newBig.Cmp(upperBig) > 0 {
		newBig = upperBig
	} else if newBig.Cmp(lowerBig) < 0 {
		newBig = lowerBig
	}

	maxUint256Big := new(uint256.Int).Not(new(uint256.Int)).ToBig()
	if newBig.Cmp(maxUint256Big) > 0 {
		newBig = maxUint256Big
	}
	if newBig.Sign() <= 0 {
		newBig = big.NewInt(1)
	}

	newTarget := new(uint256.Int)
	newTarget.SetFromBig(newBig)
	return newTarget
}

type difficultyError string

func (e difficultyError) Error() string { return string(e) }

const errMissingParent = difficultyError("parent not found in chain")
