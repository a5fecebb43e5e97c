package vmheap

// maxConstants bounds the constant pool so the single-byte CONST operand
// (spec.md §3.3) can always address it.
const maxConstants = 256

// Chunk is a compiled unit of bytecode: a flat instruction stream, a
// parallel per-byte line table for diagnostics, and its constant pool.
// FunctionObject owns exactly one Chunk.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []Value
}

func NewChunk() *Chunk {
	return &Chunk{}
}

// Write appends a raw byte with its source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op Opcode, line int) {
	c.Write(byte(op), line)
}

// AddConstant appends v to the constant pool (equal values are not
// merged) and returns its index. The
// compiler is responsible for only calling this while the pool has room;
// WriteConstant enforces the limit for the common case of emitting a
// CONST instruction directly.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// WriteConstant emits CONST <index> for v, returning false (and emitting
// nothing) if the pool is already at capacity (spec.md §3.3 "at most 256 per chunk").
func (c *Chunk) WriteConstant(v Value, line int) (int, bool) {
	if len(c.Constants) >= maxConstants {
		return 0, false
	}
	idx := c.AddConstant(v)
	c.WriteOp(OpConst, line)
	c.Write(byte(idx), line)
	return idx, true
}

// Len is the current length of the code stream, used as a jump target
// before patching.
func (c *Chunk) Len() int { return len(c.Code) }

// WriteJump emits a jump opcode with a placeholder 2-byte operand and
// returns the operand's offset for later patching via PatchJump.
func (c *Chunk) WriteJump(op Opcode, line int) int {
	c.WriteOp(op, line)
	c.Write(0xff, line)
	c.Write(0xff, line)
	return len(c.Code) - 2
}

// PatchJump back-patches the 2-byte operand at offset to jump to the
// current end of the code stream.
func (c *Chunk) PatchJump(offset int) bool {
	dist := len(c.Code) - offset - 2
	if dist > 0xffff {
		return false
	}
	c.Code[offset] = byte((dist >> 8) & 0xff)
	c.Code[offset+1] = byte(dist & 0xff)
	return true
}

// WriteLoop emits a LOOP instruction jumping back to loopStart.
func (c *Chunk) WriteLoop(loopStart int, line int) bool {
	c.WriteOp(OpLoop, line)
	dist := len(c.Code) - loopStart + 2
	if dist > 0xffff {
		return false
	}
	c.Write(byte((dist>>8)&0xff), line)
	c.Write(byte(dist&0xff), line)
	return true
}

// ReadShort reads the big-endian 2-byte operand at offset.
func (c *Chunk) ReadShort(offset int) int {
	return int(c.Code[offset])<<8 | int(c.Code[offset+1])
}

// LineAt returns the source line recorded for the byte at offset.
func (c *Chunk) LineAt(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return -1
	}
	return c.Lines[offset]
}
