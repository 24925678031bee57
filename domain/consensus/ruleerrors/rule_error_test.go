package ruleerrors

import (
	"fmt"
	"testing"
)

func TestHasCode(t *testing.T) {
	err := New(ErrInvalidNetworkId, "network id mismatch")
	if !HasCode(err, ErrInvalidNetworkId) {
		t.Fatalf("expected HasCode to match ErrInvalidNetworkId")
	}
	if HasCode(err, ErrTimeLockedTx) {
		t.Fatalf("expected HasCode to not match an unrelated code")
	}
}

func TestWrappedVmError(t *testing.T) {
	vmErr := fmt.Errorf("out of gas")
	err := NewWithVmError(ErrTxScriptExeFailed, "tx script failed", vmErr)
	if err.Unwrap() != vmErr {
		t.Fatalf("expected Unwrap to return the underlying VM error")
	}
	if err.Error() == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestIOErrorDistinctFromRuleError(t *testing.T) {
	var target *RuleError
	if As(ErrKeyNotFound, &target) {
		t.Fatalf("IOError must not satisfy RuleError's As")
	}
}
