package buftype

// Kind names the closed set of buffer types a spec can declare.
type Kind int

const (
	KindScalar Kind = iota
	KindAudioBlock
	KindEventSeq
	KindCondition
)

// ByKind returns the shared Type implementation for a buffer kind. Types are
// stateless, so a single instance per kind is reused across every buffer.
func ByKind(k Kind) Type {
	switch k {
	case KindScalar:
		return Scalar{}
	case KindAudioBlock:
		return AudioBlock{}
	case KindEventSeq:
		return EventSeq{}
	case KindCondition:
		return Condition{}
	default:
		panic("buftype: unknown kind")
	}
}

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindAudioBlock:
		return "audio_block"
	case KindEventSeq:
		return "event_seq"
	case KindCondition:
		return "condition"
	default:
		return "unknown"
	}
}
