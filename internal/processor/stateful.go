package processor

// Stateful is implemented by processor variants whose internal state can be
// captured and restored across a program republish, mirroring
// plugin_host.h's has_state/get_state/set_state virtual methods. It's
// optional: most variants (Null, LADSPA, the script family) carry no state
// worth snapshotting, so a control thread type-asserts for it rather than
// requiring every Processor to implement it.
type Stateful interface {
	// HasState reports whether the processor currently has state worth
	// saving.
	HasState() bool
	// GetState returns the processor's current serialized state. Callers
	// should check HasState first; calling GetState when none is
	// available is an error.
	GetState() ([]byte, error)
	// SetState restores previously captured state.
	SetState(state []byte) error
}
