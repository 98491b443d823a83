package processor

import "github.com/noisicaa-go/engine/internal/engineerr"

// PluginMapping is the arena-and-offsets description a Plugin processor
// hands to its PluginClient whenever the block size (and so the buffer
// layout) changes. Mirrors internal/sidecar.MemoryMapping's fields without
// importing that package, since internal/sidecar already imports
// internal/processor to run a hosted Processor inside the sidecar.
type PluginMapping struct {
	ShmemPath  string
	CondOffset uint64
	BlockSize  uint32
	Buffers    map[uint32]uint64
}

// PluginClient is the subset of *sidecar.Client a Plugin processor drives.
// A thin adapter at the point where processors are wired up converts
// between PluginMapping and sidecar.MemoryMapping.
type PluginClient interface {
	SetMemoryMapping(m PluginMapping) error
	ProcessBlock() error
	// GetState fetches the hosted processor's serialized state, if any.
	// ok is false when the hosted processor has no state to report.
	GetState() (state []byte, ok bool, err error)
	SetState(state []byte) error
	Close() error
}

// Plugin hosts an out-of-process native plugin by delegating every block
// to a sidecar subprocess over the shared-memory protocol. Grounded on
// original_source/noisicore/processor_plugin.cpp, the engine-side
// counterpart of internal/sidecar.Client/Host.
type Plugin struct {
	BaseParameters
	id    uint64
	state State
	ports []Port

	arenaName  string
	condOffset uint64
	offsets    map[uint32]uint64

	client PluginClient

	lastBlockSize uint32
}

// NewPlugin constructs a plugin processor. arenaName/condOffset describe
// the shared arena the sidecar must attach to (the sidecar recovers the
// arena's size itself via fstat, per spec.md §6's memory-map record, which
// carries no arena-size field); offsets maps each port index to its byte
// offset within that arena.
func NewPlugin(ports []Port, arenaName string, condOffset uint64, offsets map[uint32]uint64, client PluginClient) *Plugin {
	return &Plugin{
		id:         NewID(),
		ports:      ports,
		arenaName:  arenaName,
		condOffset: condOffset,
		offsets:    offsets,
		client:     client,
	}
}

func (p *Plugin) ID() uint64    { return p.id }
func (p *Plugin) Ports() []Port { return p.ports }
func (p *Plugin) State() State  { return p.state }

func (p *Plugin) Setup() error {
	p.state = StateSetUp
	return nil
}

func (p *Plugin) Cleanup() {
	if p.client != nil {
		_ = p.client.Close()
	}
	p.state = StateTornDown
}

// ConnectPort only checks that portIdx has an arena offset and ignores buf:
// a plugin's port buffers live in the shared arena at offsets fixed when the
// processor was constructed, communicated to the sidecar via the memory-map
// command rather than a per-block handoff.
func (p *Plugin) ConnectPort(portIdx uint32, buf []byte) error {
	if _, ok := p.offsets[portIdx]; !ok {
		return ErrPortNotConnected(portIdx)
	}
	return nil
}

func (p *Plugin) ProcessBlock(ctx Context) error {
	if ctx.BlockSize != p.lastBlockSize {
		mapping := PluginMapping{
			ShmemPath:  p.arenaName,
			CondOffset: p.condOffset,
			BlockSize:  ctx.BlockSize,
			Buffers:    p.offsets,
		}
		if err := p.client.SetMemoryMapping(mapping); err != nil {
			return err
		}
		p.lastBlockSize = ctx.BlockSize
	}
	return p.client.ProcessBlock()
}

// HasState reports whether the sidecar-hosted processor currently has
// state worth saving, per plugin_host.h's has_state(). Since the wire
// protocol answers this in the same round trip as GetState, this makes one
// and discards the payload.
func (p *Plugin) HasState() bool {
	_, ok, err := p.client.GetState()
	return err == nil && ok
}

// GetState fetches the hosted processor's current serialized state.
func (p *Plugin) GetState() ([]byte, error) {
	state, ok, err := p.client.GetState()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, engineerr.InvalidOperation("plugin %d has no state to get", p.id)
	}
	return state, nil
}

// SetState restores previously captured state to the hosted processor.
func (p *Plugin) SetState(state []byte) error {
	return p.client.SetState(state)
}

var _ Stateful = (*Plugin)(nil)
