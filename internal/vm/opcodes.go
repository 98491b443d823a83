// Package vm implements the opcode program interpreter: a Spec builder
// that compiles named buffers, processors and opcodes into numeric
// indices once, a Program that owns one block size's worth of allocated
// buffers, and a VM that hot-swaps programs through a three-slot
// next/current/old handoff identical in shape to internal/script's.
// Grounded on original_source/noisicore/{spec,opcodes,vm}.{h,cpp}.
package vm

import (
	"github.com/noisicaa-go/engine/internal/engineerr"
)

// OpCode is the closed instruction set the interpreter executes, in the
// same order as original_source/noisicore/opcodes.cpp's opspecs table.
type OpCode int

const (
	OpNoop OpCode = iota
	OpEnd

	OpCopy
	OpClear
	OpMix
	OpMul
	OpSetFloat

	OpOutput
	OpFetchBuffer
	OpFetchMessages
	OpFetchParameter

	OpNoise
	OpSine
	OpMidiMonkey

	OpConnectPort
	OpCall

	OpLogRMS
	OpLogAtom

	numOpcodes
)

func (o OpCode) String() string {
	if int(o) < 0 || int(o) >= len(opcodeNames) {
		return "UNKNOWN"
	}
	return opcodeNames[o]
}

var opcodeNames = [numOpcodes]string{
	OpNoop:           "NOOP",
	OpEnd:            "END",
	OpCopy:           "COPY",
	OpClear:          "CLEAR",
	OpMix:            "MIX",
	OpMul:            "MUL",
	OpSetFloat:       "SET_FLOAT",
	OpOutput:         "OUTPUT",
	OpFetchBuffer:    "FETCH_BUFFER",
	OpFetchMessages:  "FETCH_MESSAGES",
	OpFetchParameter: "FETCH_PARAMETER",
	OpNoise:          "NOISE",
	OpSine:           "SINE",
	OpMidiMonkey:     "MIDI_MONKEY",
	OpConnectPort:    "CONNECT_PORT",
	OpCall:           "CALL",
	OpLogRMS:         "LOG_RMS",
	OpLogAtom:        "LOG_ATOM",
}

// argSpecs declares each opcode's argument types, matching opspecs'
// argspec strings ('i' literal int, 'b' buffer-name -> index, 'p'
// processor-id -> index, 'f' float32 literal, 's' string literal).
var argSpecs = [numOpcodes]string{
	OpNoop:           "",
	OpEnd:            "",
	OpCopy:           "bb",
	OpClear:          "b",
	OpMix:            "bb",
	OpMul:            "bf",
	OpSetFloat:       "bf",
	OpOutput:         "bs",
	OpFetchBuffer:    "sb",
	OpFetchMessages:  "ib",
	OpFetchParameter: "sb",
	OpNoise:          "b",
	OpSine:           "bf",
	OpMidiMonkey:     "bf",
	OpConnectPort:    "pib",
	OpCall:           "p",
	OpLogRMS:         "b",
	OpLogAtom:        "b",
}

// ArgKind is the decoded type of one compiled opcode argument.
type ArgKind int

const (
	ArgInt ArgKind = iota
	ArgFloat
	ArgString
)

// Arg is one resolved opcode argument: buffer/processor references are
// already indices by the time a Spec holds them, matching the original's
// OpArg carrying only int/float/string after append_opcode's resolution.
type Arg struct {
	Kind   ArgKind
	Int    int64
	Float  float32
	String string
}

// opFunc is one opcode's init or run phase implementation.
type opFunc func(ctx *BlockContext, st *execState, args []Arg) error

type opSpec struct {
	name string
	init opFunc
	run  opFunc
}

var opspecs [numOpcodes]opSpec

func init() {
	opspecs[OpNoop] = opSpec{name: "NOOP"}
	opspecs[OpEnd] = opSpec{name: "END", run: runEnd}
	opspecs[OpCopy] = opSpec{name: "COPY", run: runCopy}
	opspecs[OpClear] = opSpec{name: "CLEAR", run: runClear}
	opspecs[OpMix] = opSpec{name: "MIX", run: runMix}
	opspecs[OpMul] = opSpec{name: "MUL", run: runMul}
	opspecs[OpSetFloat] = opSpec{name: "SET_FLOAT", run: runSetFloat}
	opspecs[OpOutput] = opSpec{name: "OUTPUT", run: runOutput}
	opspecs[OpFetchBuffer] = opSpec{name: "FETCH_BUFFER", run: runFetchBuffer}
	opspecs[OpFetchMessages] = opSpec{name: "FETCH_MESSAGES", run: runFetchMessages}
	opspecs[OpFetchParameter] = opSpec{name: "FETCH_PARAMETER", run: runFetchParameter}
	opspecs[OpNoise] = opSpec{name: "NOISE", run: runNoise}
	opspecs[OpSine] = opSpec{name: "SINE", run: runSine}
	opspecs[OpMidiMonkey] = opSpec{name: "MIDI_MONKEY", run: runMidiMonkey}
	opspecs[OpConnectPort] = opSpec{name: "CONNECT_PORT", init: initConnectPort}
	opspecs[OpCall] = opSpec{name: "CALL", run: runCall}
	opspecs[OpLogRMS] = opSpec{name: "LOG_RMS", run: runLogRMS}
	opspecs[OpLogAtom] = opSpec{name: "LOG_ATOM", run: runLogAtom}
}

func errBadArgCount(op OpCode, want, got int) error {
	return engineerr.InvalidOperation("opcode %s expects %d args, got %d", op, want, got)
}
