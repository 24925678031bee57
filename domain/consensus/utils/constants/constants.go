// Package constants holds the consensus-critical numeric constants of the
// BlockFlow protocol: the gas schedule, the output/tx caps and the group
// geometry defaults. These mirror spec.md §6's enumerated configuration
// constants; values not pinned by a test vector are set to the same order
// of magnitude the teacher uses for its own fee/weight constants.
package constants

import "math"

const (
	// GenesisTimestampMs is the timestamp, in milliseconds since epoch, of
	// the genesis header of every chain.
	GenesisTimestampMs int64 = 1231006505000

	// MaxTxInputNum/MaxTxOutputNum bound the number of inputs and fixed
	// outputs a single transaction may carry.
	MaxTxInputNum  = 256
	MaxTxOutputNum = 256

	// MaxOutputDataSize bounds AssetOutput.AdditionalData.
	MaxOutputDataSize = 256

	// MaxTokenPerUtxo bounds the number of distinct TokenAmount entries a
	// single AssetOutput may carry.
	MaxTokenPerUtxo = 256

	// Gas schedule. txBaseGas/txInputBaseGas/txOutputBaseGas/p2pkUnlockGas
	// are pinned by spec.md §4.3's test vector: a 1-input 2-output P2PKH
	// transfer must cost exactly 14060 gas.
	TxBaseGas       uint64 = 600
	TxInputBaseGas  uint64 = 2000
	TxOutputBaseGas uint64 = 4700
	P2pkUnlockGas   uint64 = 2060

	// MinimalGas is the floor gasAmount accepted by checkGasBound, and
	// exactly covers the schedule above for the canonical 1-input,
	// 2-output P2PKH transfer (the cheapest realistic spend).
	MinimalGas uint64 = TxBaseGas + TxInputBaseGas + 2*TxOutputBaseGas + P2pkUnlockGas // 14060

	// MaxGasPerTx bounds gasAmount from above.
	MaxGasPerTx uint64 = 625_000

	// P2mpkhUnlockGasPerSignature is the gas a P2MPKH unlock pays for each
	// signature it verifies (one per (pubKey, index) entry), in place of
	// P2pkUnlockGas; it is set equal to P2pkUnlockGas.
	P2mpkhUnlockGasPerSignature uint64 = P2pkUnlockGas

	// P2shCallGas is the constant call overhead charged for a P2SH
	// unlock, on top of the per-byte script cost and hash cost below.
	P2shCallGas uint64 = 1500

	// GasSchedulePerByte is the gas charged per byte of a P2SH unlock
	// script, and GasSchedulePerByteHash the gas charged per byte hashed
	// when checkGasAndWitnesses verifies the script hash; the VM's OpHash
	// also charges GasSchedulePerByteHash per input byte.
	GasSchedulePerByte     uint64 = 1
	GasSchedulePerByteHash uint64 = 1

	// FrameStackMaxSize bounds the VM's frame stack depth (spec.md §4.2).
	FrameStackMaxSize = 1024

	// StackMaxSize bounds the VM's operand stack depth within one frame.
	StackMaxSize = 1024

	// DifficultyWindowSize is the number of blocks between two retarget
	// points of a single chain's difficultymanager. Spec.md §9 leaves the
	// retarget algorithm's constants as an external contract ("reuse the
	// existing consensus constants verbatim"); absent that contract this
	// mirrors the classic ~2-week Bitcoin-style window.
	DifficultyWindowSize = 2016

	// TargetBlockIntervalMs is the expected time between two blocks of a
	// single chain, used by the retarget algorithm's actual/expected ratio.
	TargetBlockIntervalMs int64 = 10 * 60 * 1000

	// MaxRetargetFactor bounds how much a single retarget may move a
	// chain's target in either direction, clamping the actual/expected
	// time ratio to [1/MaxRetargetFactor, MaxRetargetFactor].
	MaxRetargetFactor = 4

	// TimestampFutureToleranceMs/TimestampPastToleranceMs are the 1-hour
	// skew windows spec.md §4.4's validateTimeStamp requires.
	TimestampFutureToleranceMs int64 = 60 * 60 * 1000
	TimestampPastToleranceMs   int64 = 60 * 60 * 1000
)

// MaxU256 mirrors U256::MAX, used by overflow checks that otherwise would
// rely on wraparound semantics the uint256 library explicitly flags instead.
var MaxU256 = [32]byte{}

func init() {
	for i := range MaxU256 {
		MaxU256[i] = math.MaxUint8
	}
}
