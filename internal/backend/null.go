package backend

import "github.com/noisicaa-go/engine/internal/vm"

// Null discards every block, matching the "null" variant named in
// backend.h's create() factory — used for headless tests and bench runs.
type Null struct{}

func NewNull() *Null { return &Null{} }

func (Null) Setup(blockSize uint32) error              { return nil }
func (Null) Cleanup()                                  {}
func (Null) BeginBlock(ctx *vm.BlockContext) error      { return nil }
func (Null) EndBlock(ctx *vm.BlockContext) error        { return nil }
func (Null) Output(ctx *vm.BlockContext, channel string, data []byte) error {
	return nil
}
