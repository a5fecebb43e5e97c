package vmheap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkWriteConstantRespectsCapacity(t *testing.T) {
	c := NewChunk()
	for i := 0; i < 256; i++ {
		_, ok := c.WriteConstant(Number(float64(i)), 1)
		require.True(t, ok)
	}
	_, ok := c.WriteConstant(Number(256), 1)
	require.False(t, ok, "257th constant must be rejected")
	require.Len(t, c.Constants, 256)
}

func TestChunkJumpPatchingRoundTrips(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpTrue, 1)
	jumpOffset := c.WriteJump(OpJumpIfFalse, 1)
	c.WriteOp(OpPop, 2)
	c.WriteOp(OpNil, 2)
	require.True(t, c.PatchJump(jumpOffset))

	dist := c.ReadShort(jumpOffset)
	require.Equal(t, len(c.Code)-jumpOffset-2, dist)
}

func TestChunkLoopEmitsBackwardJump(t *testing.T) {
	c := NewChunk()
	loopStart := c.Len()
	c.WriteOp(OpNil, 1)
	require.True(t, c.WriteLoop(loopStart, 1))
}

func TestChunkLinesTrackEachByte(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpNil, 5)
	c.WriteOp(OpTrue, 7)
	require.Equal(t, 5, c.LineAt(0))
	require.Equal(t, 7, c.LineAt(1))
	require.Equal(t, -1, c.LineAt(99))
}
