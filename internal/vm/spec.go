package vm

import (
	"github.com/noisicaa-go/engine/internal/buftype"
	"github.com/noisicaa-go/engine/internal/engineerr"
	"github.com/noisicaa-go/engine/internal/processor"
)

type instruction struct {
	opcode OpCode
	args   []Arg
}

type bufferDecl struct {
	name string
	kind buftype.Kind
}

// Spec is an immutable-once-built program: named buffers and processors
// resolved to numeric indices, and the opcode sequence referencing them.
// Grounded on original_source/noisicore/spec.{h,cpp}.
type Spec struct {
	ops         []instruction
	buffers     []bufferDecl
	bufferIdx   map[string]int
	processors  []processor.Processor
	processorID map[uint64]int
}

// NewSpec builds an empty Spec ready to accept buffer/processor/opcode
// declarations in any order opcodes need them resolved.
func NewSpec() *Spec {
	return &Spec{
		bufferIdx:   make(map[string]int),
		processorID: make(map[uint64]int),
	}
}

// AppendBuffer declares a named buffer of the given type and returns its
// index. Buffer names must be unique within a Spec.
func (s *Spec) AppendBuffer(name string, kind buftype.Kind) (int, error) {
	if _, exists := s.bufferIdx[name]; exists {
		return 0, engineerr.InvalidOperation("buffer %q already declared", name)
	}
	idx := len(s.buffers)
	s.buffers = append(s.buffers, bufferDecl{name: name, kind: kind})
	s.bufferIdx[name] = idx
	return idx, nil
}

func (s *Spec) bufferIndex(name string) (int, error) {
	idx, ok := s.bufferIdx[name]
	if !ok {
		return 0, engineerr.InvalidOperation("invalid buffer name %q", name)
	}
	return idx, nil
}

// AppendProcessor declares a processor this Spec's opcodes may reference
// and returns its index.
func (s *Spec) AppendProcessor(proc processor.Processor) (int, error) {
	if _, exists := s.processorID[proc.ID()]; exists {
		return 0, engineerr.InvalidOperation("processor %d already declared", proc.ID())
	}
	idx := len(s.processors)
	s.processors = append(s.processors, proc)
	s.processorID[proc.ID()] = idx
	return idx, nil
}

func (s *Spec) processorIndex(proc processor.Processor) (int, error) {
	idx, ok := s.processorID[proc.ID()]
	if !ok {
		return 0, engineerr.InvalidOperation("invalid processor %d", proc.ID())
	}
	return idx, nil
}

// AppendOpcode compiles one instruction. vals must match argSpecs[opcode]
// positionally: an 'i' slot takes an int literal, an 'f' slot a float32, a 's'
// slot takes a string literal, a 'b' slot takes a buffer name (string)
// resolved to its index, and a 'p' slot takes a processor.Processor
// resolved to its index — mirroring append_opcode's va_arg switch.
func (s *Spec) AppendOpcode(opcode OpCode, vals ...any) error {
	spec := argSpecs[opcode]
	if len(vals) != len(spec) {
		return errBadArgCount(opcode, len(spec), len(vals))
	}

	args := make([]Arg, len(spec))
	for i, c := range spec {
		switch c {
		case 'i':
			v, ok := vals[i].(int)
			if !ok {
				return engineerr.InvalidOperation("opcode %s arg %d wants int", opcode, i)
			}
			args[i] = Arg{Kind: ArgInt, Int: int64(v)}
		case 'b':
			name, ok := vals[i].(string)
			if !ok {
				return engineerr.InvalidOperation("opcode %s arg %d wants a buffer name", opcode, i)
			}
			idx, err := s.bufferIndex(name)
			if err != nil {
				return err
			}
			args[i] = Arg{Kind: ArgInt, Int: int64(idx)}
		case 'p':
			proc, ok := vals[i].(processor.Processor)
			if !ok {
				return engineerr.InvalidOperation("opcode %s arg %d wants a processor", opcode, i)
			}
			idx, err := s.processorIndex(proc)
			if err != nil {
				return err
			}
			args[i] = Arg{Kind: ArgInt, Int: int64(idx)}
		case 'f':
			v, ok := vals[i].(float32)
			if !ok {
				return engineerr.InvalidOperation("opcode %s arg %d wants float32", opcode, i)
			}
			args[i] = Arg{Kind: ArgFloat, Float: v}
		case 's':
			v, ok := vals[i].(string)
			if !ok {
				return engineerr.InvalidOperation("opcode %s arg %d wants string", opcode, i)
			}
			args[i] = Arg{Kind: ArgString, String: v}
		}
	}

	s.ops = append(s.ops, instruction{opcode: opcode, args: args})
	return nil
}

func (s *Spec) NumOps() int      { return len(s.ops) }
func (s *Spec) Opcode(idx int) OpCode { return s.ops[idx].opcode }
func (s *Spec) Opargs(idx int) []Arg  { return s.ops[idx].args }
func (s *Spec) NumBuffers() int       { return len(s.buffers) }
func (s *Spec) NumProcessors() int    { return len(s.processors) }

func (s *Spec) Processor(idx int) processor.Processor { return s.processors[idx] }

func (s *Spec) bufferKind(idx int) buftype.Kind { return s.buffers[idx].kind }
