package transactionvalidator

import (
	"encoding/binary"

	"github.com/shardflow/flowdag/domain/consensus/ruleerrors"
	"github.com/shardflow/flowdag/domain/consensus/utils/vm"
)

// decodeScript parses the flat bytecode a tx script or a P2SH unlock
// script carries: one byte opcode, followed by a 4-byte big-endian
// operand length and the operand itself for the opcodes that take one
// (OpPush, OpCall), and no operand for the rest. This is the wire
// encoding of vm.Script; spec.md leaves script bytecode format
// unspecified (it only requires the VM's execution contract, §4.2), so
// this is the core's own deterministic choice, not a network contract.
func decodeScript(raw []byte) (*vm.Script, error) {
	var instrs []vm.Instruction
	i := 0
	for i < len(raw) {
		op := vm.OpCode(raw[i])
		i++
		switch op {
		case vm.OpPush, vm.OpCall:
			if i+4 > len(raw) {
				return nil, ruleerrors.New(ruleerrors.ErrTxScriptExeFailed, "truncated script operand length")
			}
			length := int(binary.BigEndian.Uint32(raw[i : i+4]))
			i += 4
			if i+length > len(raw) {
				return nil, ruleerrors.New(ruleerrors.ErrTxScriptExeFailed, "truncated script operand")
			}
			operand := raw[i : i+length]
			i += length
			instrs = append(instrs, vm.Instruction{Op: op, Operand: operand})
		default:
			instrs = append(instrs, vm.Instruction{Op: op})
		}
	}
	return &vm.Script{Instructions: instrs}, nil
}

// encodeScript is decodeScript's inverse, used by tests and by tooling
// that assembles scripts (an external collaborator in production, but
// useful here for constructing test fixtures in the teacher's own style
// of shipping a matching encode/decode pair).
func encodeScript(script *vm.Script) []byte {
	var buf []byte
	for _, instr := range script.Instructions {
		buf = append(buf, byte(instr.Op))
		switch instr.Op {
		case vm.OpPush, vm.OpCall:
			var lenBuf [4]byte
			binary.BigEndian.PutUint32(lenBuf[:], uint32(len(instr.Operand)))
			buf = append(buf, lenBuf[:]...)
			buf = append(buf, instr.Operand...)
		}
	}
	return buf
}
