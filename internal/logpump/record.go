package logpump

import "encoding/binary"

// Level mirrors original_source/noisicaa/core/logging.h's LogLevel enum.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

const (
	headerMagic       uint32 = 0x87b6c23a
	continuationMagic uint32 = 0x9f2d8e43

	maxLoggerNameLength = 128

	// headerFixedSize is magic(4) + seq(4) + level(1) + logger(128) +
	// length(2) + continued(1).
	headerFixedSize = 4 + 4 + 1 + maxLoggerNameLength + 2 + 1
	headerPayloadCap = blockSize - headerFixedSize

	// continuationFixedSize is magic(4) + seq(4) + length(2) + continued(1).
	continuationFixedSize = 4 + 4 + 2 + 1
	continuationPayloadCap = blockSize - continuationFixedSize
)

// encodeHeader writes a LogRecordHeader block carrying up to
// headerPayloadCap bytes of msg, returning how many bytes it consumed and
// whether more remain for continuation blocks.
func encodeHeader(seq uint32, level Level, logger string, msg []byte) (block, int, bool) {
	var b block
	binary.LittleEndian.PutUint32(b[0:4], headerMagic)
	binary.LittleEndian.PutUint32(b[4:8], seq)
	b[8] = byte(level)
	copy(b[9:9+maxLoggerNameLength], logger)

	n := len(msg)
	if n > headerPayloadCap {
		n = headerPayloadCap
	}
	binary.LittleEndian.PutUint16(b[9+maxLoggerNameLength:9+maxLoggerNameLength+2], uint16(n))
	continued := n < len(msg)
	if continued {
		b[9+maxLoggerNameLength+2] = 1
	}
	copy(b[headerFixedSize:], msg[:n])
	return b, n, continued
}

func decodeHeader(b block) (seq uint32, level Level, logger string, payload []byte, continued bool, ok bool) {
	if binary.LittleEndian.Uint32(b[0:4]) != headerMagic {
		return 0, 0, "", nil, false, false
	}
	seq = binary.LittleEndian.Uint32(b[4:8])
	level = Level(b[8])
	logger = cstring(b[9 : 9+maxLoggerNameLength])
	length := binary.LittleEndian.Uint16(b[9+maxLoggerNameLength : 9+maxLoggerNameLength+2])
	continued = b[9+maxLoggerNameLength+2] != 0
	payload = append([]byte(nil), b[headerFixedSize:headerFixedSize+int(length)]...)
	return seq, level, logger, payload, continued, true
}

func encodeContinuation(seq uint32, msg []byte) (block, int, bool) {
	var b block
	binary.LittleEndian.PutUint32(b[0:4], continuationMagic)
	binary.LittleEndian.PutUint32(b[4:8], seq)

	n := len(msg)
	if n > continuationPayloadCap {
		n = continuationPayloadCap
	}
	binary.LittleEndian.PutUint16(b[8:10], uint16(n))
	continued := n < len(msg)
	if continued {
		b[10] = 1
	}
	copy(b[continuationFixedSize:], msg[:n])
	return b, n, continued
}

func decodeContinuation(b block) (seq uint32, payload []byte, continued bool, ok bool) {
	if binary.LittleEndian.Uint32(b[0:4]) != continuationMagic {
		return 0, nil, false, false
	}
	seq = binary.LittleEndian.Uint32(b[4:8])
	length := binary.LittleEndian.Uint16(b[8:10])
	continued = b[10] != 0
	payload = append([]byte(nil), b[continuationFixedSize:continuationFixedSize+int(length)]...)
	return seq, payload, continued, true
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
