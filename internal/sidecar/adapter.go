package sidecar

import "github.com/noisicaa-go/engine/internal/processor"

// ClientAdapter satisfies processor.PluginClient by translating a
// processor.PluginMapping into the MemoryMapping this package's Client
// actually sends. Keeping the translation here (rather than in
// internal/processor) avoids a processor<->sidecar import cycle, since
// Host already depends on processor to run a hosted Processor.
type ClientAdapter struct {
	*Client
}

func (a ClientAdapter) SetMemoryMapping(m processor.PluginMapping) error {
	buffers := make([]BufferEntry, 0, len(m.Buffers))
	for portIdx, offset := range m.Buffers {
		buffers = append(buffers, BufferEntry{PortIndex: portIdx, Offset: offset})
	}
	return a.Client.SetMemoryMapping(MemoryMapping{
		ShmemPath:  m.ShmemPath,
		CondOffset: m.CondOffset,
		BlockSize:  m.BlockSize,
		Buffers:    buffers,
	})
}

var _ processor.PluginClient = ClientAdapter{}
