package vm

// Backend is the sink a program's OUTPUT opcode writes named channels to,
// and the per-block bracket (BeginBlock/EndBlock) around one process_block
// call. Implemented by internal/backend's local/IPC/null/filesink variants.
// Grounded on original_source/noisicore/backend.h.
type Backend interface {
	Setup(blockSize uint32) error
	Cleanup()
	BeginBlock(ctx *BlockContext) error
	EndBlock(ctx *BlockContext) error
	Output(ctx *BlockContext, channel string, data []byte) error
}
