package vm

import (
	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/utils/constants"
	"github.com/shardflow/flowdag/domain/consensus/utils/hashes"
)

// OpCode identifies one VM instruction. The set is small and orthogonal by
// design: spec.md §4.2 only requires determinism and gas metering, not a
// particular instruction set, so this models exactly the operations
// §4.1-§4.3 need a script to perform (stack manipulation, equality,
// arithmetic, signature checking, contract state access, token issuance,
// nested calls) rather than reproducing a general-purpose ISA.
type OpCode byte

const (
	OpPush OpCode = iota
	OpPop
	OpDup
	OpSwap
	OpEqual
	OpVerify
	OpAddU256
	OpSubU256
	OpHash
	OpCheckSig
	OpLoadState
	OpStoreState
	OpIssueToken
	OpCall
	OpReturn
)

// stepGasCost is the flat per-instruction gas charge; OpHash adds
// GasSchedulePerByteHash per input byte on top, and OpCheckSig adds a flat
// P2pkUnlockGas.
const stepGasCost = 1

// Instruction is one opcode plus its static operand (e.g. the bytes
// OpPush pushes, or the 32-byte contract id whose script OpCall runs).
type Instruction struct {
	Op      OpCode
	Operand []byte
}

func (r *Runtime) step(f *Frame) error {
	if err := r.gas.Use(stepGasCost); err != nil {
		return err
	}
	instr := f.script.Instructions[f.pc]
	f.pc++

	switch instr.Op {
	case OpPush:
		return f.push(instr.Operand)

	case OpPop:
		_, err := f.pop()
		return err

	case OpDup:
		v, err := f.pop()
		if err != nil {
			return err
		}
		if err := f.push(v); err != nil {
			return err
		}
		return f.push(append([]byte{}, v...))

	case OpSwap:
		a, err := f.pop()
		if err != nil {
			return err
		}
		b, err := f.pop()
		if err != nil {
			return err
		}
		if err := f.push(a); err != nil {
			return err
		}
		return f.push(b)

	case OpEqual:
		a, err := f.pop()
		if err != nil {
			return err
		}
		b, err := f.pop()
		if err != nil {
			return err
		}
		if string(a) == string(b) {
			return f.push([]byte{1})
		}
		return f.push([]byte{0})

	case OpVerify:
		v, err := f.pop()
		if err != nil {
			return err
		}
		if len(v) == 0 || v[0] == 0 {
			return ErrAssertionFailed
		}
		return nil

	case OpAddU256, OpSubU256:
		return r.arith(f, instr.Op)

	case OpHash:
		v, err := f.pop()
		if err != nil {
			return err
		}
		if err := r.gas.Use(constants.GasSchedulePerByteHash * uint64(len(v))); err != nil {
			return err
		}
		h := hashes.Sum256("flowdag-vm-hash", v)
		return f.push(h.ByteSlice())

	case OpCheckSig:
		return r.checkSig(f)

	case OpLoadState:
		return r.loadState(f)

	case OpStoreState:
		return r.storeState(f)

	case OpIssueToken:
		return r.issueToken(f)

	case OpCall:
		return r.call(f, instr.Operand)

	case OpReturn:
		n, err := f.pop()
		if err != nil {
			return err
		}
		count := int(decodeU32(n))
		values := make([][]byte, count)
		for i := count - 1; i >= 0; i-- {
			v, err := f.pop()
			if err != nil {
				return err
			}
			values[i] = v
		}
		*f.returnSink = append(*f.returnSink, values...)
		f.pc = len(f.script.Instructions)
		return nil

	default:
		return ErrInvalidOpcode
	}
}

func (r *Runtime) arith(f *Frame, op OpCode) error {
	bBytes, err := f.pop()
	if err != nil {
		return err
	}
	aBytes, err := f.pop()
	if err != nil {
		return err
	}
	a, ok := decodeU256(aBytes)
	if !ok {
		return ErrTypeMismatch
	}
	b, ok := decodeU256(bBytes)
	if !ok {
		return ErrTypeMismatch
	}
	var result uint256.Int
	var overflow bool
	if op == OpAddU256 {
		_, overflow = result.AddOverflow(a, b)
	} else {
		overflow = b.Gt(a)
		if !overflow {
			result.Sub(a, b)
		}
	}
	if overflow {
		return ErrArithmeticOverflow
	}
	encoded := result.Bytes32()
	return f.push(encoded[:])
}

// checkSig pops the signature, then the public key, and verifies the
// signature over the Context's TxHash with VerifySignature, pushing 1 on
// success and 0 otherwise. It works identically in both contexts since
// signature verification never touches world state.
func (r *Runtime) checkSig(f *Frame) error {
	sig, err := f.pop()
	if err != nil {
		return err
	}
	pubKey, err := f.pop()
	if err != nil {
		return err
	}
	if err := r.gas.Use(constants.P2pkUnlockGas); err != nil {
		return err
	}
	ok := VerifySignature(pubKey, r.ctx.TxHash().ByteSlice(), sig)
	if ok {
		return f.push([]byte{1})
	}
	return f.push([]byte{0})
}

func (r *Runtime) statefulWorld() (World, error) {
	sc, ok := r.ctx.(*StatefulContext)
	if !ok {
		return nil, ErrStatelessContextViolation
	}
	return sc.World, nil
}

func (r *Runtime) loadState(f *Frame) error {
	world, err := r.statefulWorld()
	if err != nil {
		return err
	}
	key, err := f.pop()
	if err != nil {
		return err
	}
	contractIdBytes, err := f.pop()
	if err != nil {
		return err
	}
	contractId, ok := decodeContractId(contractIdBytes)
	if !ok {
		return ErrTypeMismatch
	}
	value, found, err := world.GetContractState(contractId, key)
	if err != nil {
		return err
	}
	if !found {
		return f.push(nil)
	}
	return f.push(value)
}

func (r *Runtime) storeState(f *Frame) error {
	world, err := r.statefulWorld()
	if err != nil {
		return err
	}
	value, err := f.pop()
	if err != nil {
		return err
	}
	key, err := f.pop()
	if err != nil {
		return err
	}
	contractIdBytes, err := f.pop()
	if err != nil {
		return err
	}
	contractId, ok := decodeContractId(contractIdBytes)
	if !ok {
		return ErrTypeMismatch
	}
	return world.SetContractState(contractId, key, value)
}

func (r *Runtime) issueToken(f *Frame) error {
	world, err := r.statefulWorld()
	if err != nil {
		return err
	}
	amountBytes, err := f.pop()
	if err != nil {
		return err
	}
	tokenIdBytes, err := f.pop()
	if err != nil {
		return err
	}
	amount, ok := decodeU256(amountBytes)
	if !ok {
		return ErrTypeMismatch
	}
	tokenId, ok := decodeTokenId(tokenIdBytes)
	if !ok {
		return ErrTypeMismatch
	}
	return world.IssueToken(tokenId, amount)
}

func (r *Runtime) call(f *Frame, operand []byte) error {
	world, err := r.statefulWorld()
	if err != nil {
		return err
	}
	contractId, ok := decodeContractId(operand)
	if !ok {
		return ErrTypeMismatch
	}
	script, found, err := world.ContractScript(contractId)
	if err != nil {
		return err
	}
	if !found {
		return ErrAssertionFailed
	}
	if len(r.frames)+1 > constants.FrameStackMaxSize {
		return ErrFrameStackOverflow
	}
	r.frames = append(r.frames, script.StartFrame(nil, f.stack, f.returnSink))
	return nil
}
