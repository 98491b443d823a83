package processor

// Null is the trivial pass-through processor: it declares no ports, accepts
// connections to none, and does nothing on every block. Grounded directly on
// original_source/noisicore/processor_null.{h,cpp}, used as the quiescent
// processor a program slot holds while no real unit is loaded yet.
type Null struct {
	BaseParameters
	id    uint64
	state State
}

// NewNull constructs a Null processor with a fresh identity.
func NewNull() *Null {
	return &Null{id: NewID()}
}

func (n *Null) ID() uint64    { return n.id }
func (n *Null) Ports() []Port { return nil }

func (n *Null) Setup() error {
	n.state = StateSetUp
	return nil
}

func (n *Null) Cleanup() {
	n.state = StateTornDown
}

// ConnectPort is a no-op: the null processor has no ports to bind, but
// accepts the call unconditionally rather than rejecting it, matching
// processor_null.cpp's connect_port always answering Status::Ok().
func (n *Null) ConnectPort(portIdx uint32, buf []byte) error {
	return nil
}

func (n *Null) ProcessBlock(ctx Context) error {
	return nil
}

func (n *Null) State() State { return n.state }
