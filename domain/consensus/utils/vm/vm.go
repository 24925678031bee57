// Package vm implements the frame-stack interpreter spec.md §4.2
// describes: a deterministic, gas-metered executor with two Context
// variants (Stateless, for unlock scripts; Stateful, for tx scripts and
// contract calls). Grounded on the teacher's txscript engine contract
// (domain/consensus/utils/txscript), generalized from a single
// Bitcoin-Script-style opcode set into the tagged-Context design spec.md
// §9 directs, with an explicit Frame stack instead of the teacher's
// recursive interpreter.
package vm

import (
	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/utils/constants"
)

// ContextKind tags a Runtime as Stateless or Stateful (spec.md §4.2, §9).
type ContextKind int

const (
	// Stateless is the read-only context used to execute unlock scripts
	// (P2SH). It never touches world state.
	Stateless ContextKind = iota
	// Stateful is the read/write context used to execute tx scripts. It
	// may read and mutate contract state and issue tokens via World.
	Stateful
)

// Context is implemented by StatelessContext and StatefulContext.
type Context interface {
	Kind() ContextKind
	// TxHash is the hash signatures in this call are checked against
	// (spec.md §4.3's `Hash(unsigned)`).
	TxHash() *externalapi.Hash
}

// StatelessContext is the Context passed to a Script executing an unlock
// script: it carries only what's needed to verify signatures.
type StatelessContext struct {
	UnsignedTxHash *externalapi.Hash
}

// Kind implements Context.
func (c *StatelessContext) Kind() ContextKind { return Stateless }

// TxHash implements Context.
func (c *StatelessContext) TxHash() *externalapi.Hash { return c.UnsignedTxHash }

// World is the subset of world-state operations a stateful script may
// perform: reading and mutating a contract's persistent key-value store,
// issuing new token supply, and loading a contract's script. Satisfied by
// domain/worldstate's scratch view, kept as an interface here so vm never
// imports worldstate (avoiding an import cycle, since worldstate in turn
// imports vm for the Script type).
type World interface {
	GetContractState(contractId externalapi.ContractId, key []byte) ([]byte, bool, error)
	SetContractState(contractId externalapi.ContractId, key []byte, value []byte) error
	IssueToken(tokenId externalapi.TokenId, amount *uint256.Int) error
	ContractScript(contractId externalapi.ContractId) (*Script, bool, error)
}

// StatefulContext is the Context passed to a Script executing a tx script.
type StatefulContext struct {
	StatelessContext
	World World
}

// Kind implements Context.
func (c *StatefulContext) Kind() ContextKind { return Stateful }

// GasBox is the deterministic execution-cost counter a Runtime drains as
// it executes. Out-of-gas halts execution with ErrOutOfGas and leaves no
// side effects visible (the caller discards the scratch World view).
type GasBox struct {
	remaining uint64
}

// NewGasBox starts a GasBox with the given starting gas (spec.md §4.3:
// "execute with stateful VM starting gas = gasAmount").
func NewGasBox(amount uint64) *GasBox {
	return &GasBox{remaining: amount}
}

// Use charges amount from the box, failing with ErrOutOfGas if
// insufficient gas remains.
func (g *GasBox) Use(amount uint64) error {
	if amount > g.remaining {
		g.remaining = 0
		return ErrOutOfGas
	}
	g.remaining -= amount
	return nil
}

// Remaining returns the gas left in the box.
func (g *GasBox) Remaining() uint64 {
	return g.remaining
}

// GasUsed returns how much gas has been consumed so far relative to
// startAmount.
func (g *GasBox) GasUsed(startAmount uint64) uint64 {
	return startAmount - g.remaining
}

// Frame is one activation of a Script on the Runtime's frame stack: its
// program counter, operand stack, and static fields/args.
type Frame struct {
	script     *Script
	pc         int
	stack      [][]byte
	fields     [][]byte
	args       [][]byte
	returnSink *[][]byte
}

func (f *Frame) complete() bool {
	return f.pc >= len(f.script.Instructions)
}

func (f *Frame) push(v []byte) error {
	if len(f.stack) >= constants.StackMaxSize {
		return ErrStackOverflow
	}
	f.stack = append(f.stack, v)
	return nil
}

func (f *Frame) pop() ([]byte, error) {
	if len(f.stack) == 0 {
		return nil, ErrStackUnderflow
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

// Script is a flat sequence of instructions. Unlock scripts and tx
// scripts are both Scripts; only the Context passed to StartFrame
// distinguishes what operations they may perform.
type Script struct {
	Instructions []Instruction
}

// StartFrame builds the initial Frame for executing this script under
// ctx, with the given static fields, call args, and a shared returnSink
// the OpReturn instruction appends to.
func (s *Script) StartFrame(fields, args [][]byte, returnSink *[][]byte) *Frame {
	argsClone := make([][]byte, len(args))
	copy(argsClone, args)
	return &Frame{
		script:     s,
		fields:     fields,
		args:       argsClone,
		stack:      append([][]byte{}, argsClone...),
		returnSink: returnSink,
	}
}

// Runtime executes Scripts under a single Context, draining a shared
// GasBox and enforcing the bounded frame stack of spec.md §4.2.
type Runtime struct {
	ctx    Context
	gas    *GasBox
	frames []*Frame
}

// NewRuntime builds a Runtime bound to ctx and gas. ctx and gas are
// shared across every Call made on this Runtime, so a contract call that
// invokes another contract shares the same gas budget and frame stack.
func NewRuntime(ctx Context, gas *GasBox) *Runtime {
	return &Runtime{ctx: ctx, gas: gas}
}

// GasBox returns the Runtime's shared gas counter.
func (r *Runtime) GasBox() *GasBox {
	return r.gas
}

// Call executes script to completion (including any nested OpCall frames
// it pushes) and returns the values collected in its return sink.
//
// This is the execute loop of spec.md §4.2: while the frame stack is
// non-empty, inspect the top frame; if complete, pop it; else advance it
// by exactly one step. Determinism follows from every step being a pure
// function of (frame state, ctx, gas) with no suspension points.
func (r *Runtime) Call(script *Script, fields, args [][]byte) ([][]byte, error) {
	returnSink := make([][]byte, 0)
	if len(r.frames)+1 > constants.FrameStackMaxSize {
		return nil, ErrFrameStackOverflow
	}
	r.frames = append(r.frames, script.StartFrame(fields, args, &returnSink))

	baseDepth := len(r.frames) - 1
	for len(r.frames) > baseDepth {
		top := r.frames[len(r.frames)-1]
		if top.complete() {
			r.frames = r.frames[:len(r.frames)-1]
			continue
		}
		if err := r.step(top); err != nil {
			return nil, err
		}
	}
	return returnSink, nil
}
