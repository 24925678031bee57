// Package ruleerrors defines the two disjoint error taxonomies of spec.md
// §7: IOError for transient/systemic storage failures, and the three
// InvalidXxx statuses (header, block, tx) for consensus-rule rejections.
// Validation functions return a plain `error`; callers distinguish the two
// taxonomies with errors.As, exactly as the teacher's RuleError is checked.
package ruleerrors

import "fmt"

// ErrorCode identifies one specific consensus-rule violation.
type ErrorCode int

const (
	// Header/block statuses (spec.md §7 InvalidHeaderStatus, extended by
	// InvalidBlockStatus).
	ErrInvalidTimeStamp ErrorCode = iota
	ErrInvalidWorkAmount
	ErrInvalidWorkTarget
	ErrMissingParent
	ErrMissingDeps
	ErrInvalidGroup
	ErrEmptyTransactionList
	ErrInvalidCoinbase
	ErrInvalidMerkleRoot
	ErrDoubleSpent
	ErrInvalidCoins

	// Transaction statuses (spec.md §7 InvalidTxStatus).
	ErrInvalidNetworkId
	ErrTooManyInputs
	ErrContractInputForInterGroupTx
	ErrNoOutputs
	ErrTooManyOutputs
	ErrGeneratedOutputForInterGroupTx
	ErrInvalidStartGas
	ErrInvalidGasPrice
	ErrBalanceOverFlow
	ErrInvalidOutputStats
	ErrInvalidInputGroupIndex
	ErrInvalidOutputGroupIndex
	ErrTxDoubleSpending
	ErrOutputDataSizeExceeded
	ErrNonExistInput
	ErrTimeLockedTx
	ErrInvalidAlfBalance
	ErrInvalidTokenBalance
	ErrNotEnoughSignature
	ErrTooManySignatures
	ErrInvalidPublicKeyHash
	ErrInvalidSignature
	ErrInvalidNumberOfPublicKey
	ErrInvalidP2mpkhUnlockScript
	ErrInvalidScriptHash
	ErrUnlockScriptExeFailed
	ErrTxScriptExeFailed
)

var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidTimeStamp:               "InvalidTimeStamp",
	ErrInvalidWorkAmount:              "InvalidWorkAmount",
	ErrInvalidWorkTarget:              "InvalidWorkTarget",
	ErrMissingParent:                  "MissingParent",
	ErrMissingDeps:                    "MissingDeps",
	ErrInvalidGroup:                   "InvalidGroup",
	ErrEmptyTransactionList:           "EmptyTransactionList",
	ErrInvalidCoinbase:                "InvalidCoinbase",
	ErrInvalidMerkleRoot:              "InvalidMerkleRoot",
	ErrDoubleSpent:                    "DoubleSpent",
	ErrInvalidCoins:                   "InvalidCoins",
	ErrInvalidNetworkId:               "InvalidNetworkId",
	ErrTooManyInputs:                  "TooManyInputs",
	ErrContractInputForInterGroupTx:   "ContractInputForInterGroupTx",
	ErrNoOutputs:                      "NoOutputs",
	ErrTooManyOutputs:                 "TooManyOutputs",
	ErrGeneratedOutputForInterGroupTx: "GeneratedOutputForInterGroupTx",
	ErrInvalidStartGas:                "InvalidStartGas",
	ErrInvalidGasPrice:                "InvalidGasPrice",
	ErrBalanceOverFlow:                "BalanceOverFlow",
	ErrInvalidOutputStats:             "InvalidOutputStats",
	ErrInvalidInputGroupIndex:         "InvalidInputGroupIndex",
	ErrInvalidOutputGroupIndex:        "InvalidOutputGroupIndex",
	ErrTxDoubleSpending:               "TxDoubleSpending",
	ErrOutputDataSizeExceeded:         "OutputDataSizeExceeded",
	ErrNonExistInput:                  "NonExistInput",
	ErrTimeLockedTx:                   "TimeLockedTx",
	ErrInvalidAlfBalance:              "InvalidAlfBalance",
	ErrInvalidTokenBalance:            "InvalidTokenBalance",
	ErrNotEnoughSignature:             "NotEnoughSignature",
	ErrTooManySignatures:              "TooManySignatures",
	ErrInvalidPublicKeyHash:           "InvalidPublicKeyHash",
	ErrInvalidSignature:               "InvalidSignature",
	ErrInvalidNumberOfPublicKey:       "InvalidNumberOfPublicKey",
	ErrInvalidP2mpkhUnlockScript:      "InvalidP2mpkhUnlockScript",
	ErrInvalidScriptHash:              "InvalidScriptHash",
	ErrUnlockScriptExeFailed:          "UnlockScriptExeFailed",
	ErrTxScriptExeFailed:              "TxScriptExeFailed",
}

func (code ErrorCode) String() string {
	if s, ok := errorCodeStrings[code]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(code))
}

// RuleError identifies a rejected header, block or transaction. VmError, if
// non-nil, carries the underlying VM failure for the two Exe-failed
// variants (spec.md §4.3 rule 4/5's TxScriptExeFailed/UnlockScriptExeFailed).
type RuleError struct {
	ErrorCode   ErrorCode
	Description string
	VmError     error
}

func (e *RuleError) Error() string {
	if e.VmError != nil {
		return fmt.Sprintf("%s: %s: %s", e.ErrorCode, e.Description, e.VmError)
	}
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Description)
}

// Unwrap exposes the underlying VM error, if any, to errors.Is/errors.As.
func (e *RuleError) Unwrap() error {
	return e.VmError
}

// New builds a RuleError with no underlying VM error.
func New(code ErrorCode, description string) *RuleError {
	return &RuleError{ErrorCode: code, Description: description}
}

// NewWithVmError builds a RuleError wrapping a VM execution failure, for
// the TxScriptExeFailed/UnlockScriptExeFailed variants.
func NewWithVmError(code ErrorCode, description string, vmErr error) *RuleError {
	return &RuleError{ErrorCode: code, Description: description, VmError: vmErr}
}

// HasCode reports whether err, or an error it wraps, is a *RuleError
// carrying the given code. ErrorCode is not itself an error, so errors.Is
// cannot make this comparison.
func HasCode(err error, code ErrorCode) bool {
	var ruleErr *RuleError
	if ok := As(err, &ruleErr); ok {
		return ruleErr.ErrorCode == code
	}
	return false
}

// As walks err's Unwrap chain and, at the first *RuleError it finds,
// stores it in *target and returns true. It does its own walk rather than
// calling the standard errors.As.
func As(err error, target **RuleError) bool {
	for err != nil {
		if re, ok := err.(*RuleError); ok {
			*target = re
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IOError identifies a transient or systemic storage failure. It is
// disjoint from RuleError: validation functions return either an IOError
// (bubbled to the caller for retry) or a RuleError (final rejection),
// never both.
type IOError struct {
	Kind IOErrorKind
	Err  error
}

// IOErrorKind enumerates spec.md §7's IOError variants.
type IOErrorKind int

const (
	// IOErrKeyNotFound signals a missing storage key; at the tx layer
	// this becomes NonExistInput (spec.md §4.1).
	IOErrKeyNotFound IOErrorKind = iota
	IOErrSerde
	IOErrOther
)

func (e *IOError) Error() string {
	return fmt.Sprintf("IOError(%v): %s", e.Kind, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError wraps err as an IOError of the given kind.
func NewIOError(kind IOErrorKind, err error) *IOError {
	return &IOError{Kind: kind, Err: err}
}

// ErrKeyNotFound is the IOError instance getPreOutputs/getAsset return when
// a referenced output does not exist in the world state.
var ErrKeyNotFound = &IOError{Kind: IOErrKeyNotFound, Err: fmt.Errorf("key not found")}
