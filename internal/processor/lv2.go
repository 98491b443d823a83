package processor

import "github.com/noisicaa-go/engine/internal/engineerr"

// LV2 is a placeholder variant for the LV2 plugin host named in
// original_source/noisicore/processor_lv2.{h,cpp} (built on liblilv). No
// example repository in this pack wraps liblilv/lilv, and bridging it
// idiomatically needs its own cgo binding project rather than an ad hoc
// one here, so this variant is kept as a clearly-failing stub: it reports
// its kind and ports but refuses Setup, rather than silently behaving like
// a no-op processor the way Null does.
type LV2 struct {
	BaseParameters
	id          uint64
	state       State
	pluginURI   string
	ports       []Port
}

func NewLV2(pluginURI string, ports []Port) *LV2 {
	return &LV2{id: NewID(), pluginURI: pluginURI, ports: ports}
}

func (p *LV2) ID() uint64      { return p.id }
func (p *LV2) Ports() []Port   { return p.ports }
func (p *LV2) State() State    { return p.state }

func (p *LV2) Setup() error {
	return engineerr.New("LV2 hosting is not implemented (plugin %q); no lilv binding is available", p.pluginURI)
}

func (p *LV2) Cleanup() {}

func (p *LV2) ConnectPort(portIdx uint32, buf []byte) error {
	return engineerr.New("LV2 hosting is not implemented")
}

func (p *LV2) ProcessBlock(ctx Context) error {
	return engineerr.New("LV2 hosting is not implemented")
}
