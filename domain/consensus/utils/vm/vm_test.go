package vm

import (
	"testing"

	"golang.org/x/crypto/ed25519"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
)

func txHash() *externalapi.Hash {
	h, err := externalapi.NewHashFromString("0000000000000000000000000000000000000000000000000000000000000001")
	if err != nil {
		panic(err)
	}
	return h
}

func TestRuntimeAddU256(t *testing.T) {
	script := &Script{Instructions: []Instruction{
		{Op: OpPush, Operand: []byte{2}},
		{Op: OpPush, Operand: []byte{3}},
		{Op: OpAddU256},
		{Op: OpPush, Operand: []byte{1}},
		{Op: OpReturn},
	}}
	ctx := &StatelessContext{UnsignedTxHash: txHash()}
	rt := NewRuntime(ctx, NewGasBox(1000))
	ret, err := rt.Call(script, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ret) != 1 || ret[0][len(ret[0])-1] != 5 {
		t.Fatalf("expected 5, got %v", ret)
	}
}

func TestRuntimeOutOfGas(t *testing.T) {
	script := &Script{Instructions: []Instruction{
		{Op: OpPush, Operand: []byte{1}},
		{Op: OpPush, Operand: []byte{1}},
	}}
	ctx := &StatelessContext{UnsignedTxHash: txHash()}
	rt := NewRuntime(ctx, NewGasBox(1))
	_, err := rt.Call(script, nil, nil)
	if err != ErrOutOfGas {
		t.Fatalf("expected ErrOutOfGas, got %v", err)
	}
}

func TestRuntimeStackUnderflow(t *testing.T) {
	script := &Script{Instructions: []Instruction{{Op: OpPop}}}
	ctx := &StatelessContext{UnsignedTxHash: txHash()}
	rt := NewRuntime(ctx, NewGasBox(1000))
	_, err := rt.Call(script, nil, nil)
	if err != ErrStackUnderflow {
		t.Fatalf("expected ErrStackUnderflow, got %v", err)
	}
}

func TestRuntimeCheckSig(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	hash := txHash()
	sig := Sign(priv, hash.ByteSlice())

	script := &Script{Instructions: []Instruction{
		{Op: OpPush, Operand: []byte(pub)},
		{Op: OpPush, Operand: sig},
		{Op: OpCheckSig},
		{Op: OpVerify},
	}}
	ctx := &StatelessContext{UnsignedTxHash: hash}
	rt := NewRuntime(ctx, NewGasBox(10000))
	_, err = rt.Call(script, nil, nil)
	if err != nil {
		t.Fatalf("expected signature to verify, got %v", err)
	}
}

func TestRuntimeDeterministic(t *testing.T) {
	script := &Script{Instructions: []Instruction{
		{Op: OpPush, Operand: []byte{7}},
		{Op: OpHash},
		{Op: OpPush, Operand: []byte{1}},
		{Op: OpReturn},
	}}
	ctx := &StatelessContext{UnsignedTxHash: txHash()}

	rt1 := NewRuntime(ctx, NewGasBox(1000))
	ret1, err := rt1.Call(script, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	used1 := uint64(1000) - rt1.GasBox().Remaining()

	rt2 := NewRuntime(ctx, NewGasBox(1000))
	ret2, err := rt2.Call(script, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	used2 := uint64(1000) - rt2.GasBox().Remaining()

	if string(ret1[0]) != string(ret2[0]) || used1 != used2 {
		t.Fatalf("expected identical outcome and gas usage across runs")
	}
}
