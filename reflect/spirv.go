// Copyright 2024 The vkwave-go Authors. All rights reserved.

// Package reflect derives descriptor set layouts and push-constant ranges
// from compiled SPIR-V shader bytecode, so pipeline and descriptor layouts
// never need a hand-written registry.
package reflect

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

const (
	spirvMagic = 0x07230203

	opName           = 5
	opEntryPoint     = 15
	opTypeStruct     = 30
	opTypePointer    = 32
	opVariable       = 59
	opDecorate       = 71
	opMemberDecorate = 72
	opTypeFloat      = 22
	opTypeInt        = 21
	opTypeVector     = 23
	opTypeMatrix     = 24
	opTypeArray      = 28
	opTypeRuntime    = 29
	opConstant       = 43
	opTypeImage      = 25
	opTypeSampler    = 26
	opTypeSampledImg = 27

	decorationBinding        = 33
	decorationDescriptorSet  = 34
	decorationOffset         = 35
	decorationArrayStride    = 6
	decorationMatrixStride   = 7

	storageClassUniformConstant = 0
	storageClassUniform         = 2
	storageClassStorageBuffer   = 12
	storageClassPushConstant    = 9
)

// StageCode pairs compiled bytecode with the stage it was compiled for.
type StageCode struct {
	Code  []uint32
	Stage vk.ShaderStageFlagBits
}

// Binding describes a single (set, binding) descriptor discovered by
// reflection.
type Binding struct {
	Index      int
	Type       vk.DescriptorType
	Count      int
	StageMask  vk.ShaderStageFlags
	BlockSize  int // >0 iff Type is a uniform/storage buffer (dynamic or not)
	Name       string
}

// DescriptorSet holds the ordered bindings belonging to one set index.
type DescriptorSet struct {
	Index    int
	Bindings []Binding
}

// PushConstantRange is a merged push-constant range: ranges with identical
// (Offset, Size) found across stages are OR-ed into a single stage mask.
type PushConstantRange struct {
	Offset, Size int
	StageMask    vk.ShaderStageFlags
}

// Reflection is the aggregated result of reflecting one or more shader
// stages that will be bound together in a single pipeline.
type Reflection struct {
	PushConstants []PushConstantRange
	Sets          []DescriptorSet

	debug bool
}

type module struct {
	words []uint32
	// pointer id -> (storageClass, pointee type id)
	pointers map[uint32]pointerInfo
	// struct id -> ordered member type ids
	structMembers map[uint32][]uint32
	// struct id -> member index -> byte offset
	memberOffset map[uint32]map[uint32]uint32
	// vector/matrix/array component info
	vecType  map[uint32]vecInfo
	matType  map[uint32]matInfo
	arrType  map[uint32]arrInfo
	scalType map[uint32]int // byte size of scalar (float/int) types
	// id -> binding/set decorations
	binding map[uint32]uint32
	set     map[uint32]uint32
	// variable id -> its pointer type id (the storage class is looked up
	// through pointers)
	variables map[uint32]uint32 // var id -> pointer type id
	// constant id -> integer value, used for array lengths
	constants map[uint32]uint32
	// opaque type id -> kind (image/sampler/sampledImage)
	opaque map[uint32]opaqueKind
	// id -> debug name, from OpName
	names map[uint32]string
}

type opaqueKind int

const (
	opaqueImage opaqueKind = iota
	opaqueSampler
	opaqueSampledImage
)

type pointerInfo struct {
	storageClass uint32
	pointee      uint32
}

type vecInfo struct {
	comp  uint32
	count uint32
}

type matInfo struct {
	col    uint32
	count  uint32
	stride uint32
}

type arrInfo struct {
	elem   uint32
	length uint32
	stride uint32
}

// Reflect walks the given shader stages and produces a merged set/binding
// layout plus push-constant ranges. Parse failures are fatal and returned
// as an error; mismatched per-binding attributes across stages are
// reported as an error rather than silently picking one side.
func Reflect(stages []StageCode, debug bool) (*Reflection, error) {
	r := &Reflection{debug: debug}
	setMap := map[int]*DescriptorSet{}
	var setOrder []int

	pcRanges := map[[2]int]vk.ShaderStageFlags{}
	var pcOrder [][2]int

	for _, sc := range stages {
		m, err := parseModule(sc.Code)
		if err != nil {
			return nil, fmt.Errorf("reflect: parsing stage bytecode: %w", err)
		}
		stageBit := vk.ShaderStageFlags(sc.Stage)

		blocks := m.blocks()
		for _, b := range blocks {
			if b.storageClass == storageClassPushConstant {
				key := [2]int{b.offset, b.size}
				if _, ok := pcRanges[key]; !ok {
					pcOrder = append(pcOrder, key)
				}
				pcRanges[key] |= stageBit
				continue
			}
			var dtype vk.DescriptorType
			if b.isOpaque {
				dtype = b.opaqueType
			} else {
				var ok bool
				dtype, ok = descriptorType(b.storageClass, b.isBlock)
				if !ok {
					continue
				}
			}
			ds, ok := setMap[int(b.set)]
			if !ok {
				ds = &DescriptorSet{Index: int(b.set)}
				setMap[int(b.set)] = ds
				setOrder = append(setOrder, int(b.set))
			}
			found := false
			for i := range ds.Bindings {
				if ds.Bindings[i].Index == int(b.binding) {
					existing := &ds.Bindings[i]
					if existing.Type != dtype || existing.Count != b.count || existing.BlockSize != b.size {
						return nil, fmt.Errorf(
							"reflect: binding (set=%d, binding=%d) mismatched across stages: "+
								"type/count/blockSize differ (%v/%d/%d vs %v/%d/%d)",
							b.set, b.binding, existing.Type, existing.Count, existing.BlockSize,
							dtype, b.count, b.size)
					}
					existing.StageMask |= stageBit
					found = true
					break
				}
			}
			if !found {
				ds.Bindings = append(ds.Bindings, Binding{
					Index:     int(b.binding),
					Type:      dtype,
					Count:     b.count,
					StageMask: stageBit,
					BlockSize: b.size,
					Name:      b.name,
				})
			}
		}
	}

	for _, off := range pcOrder {
		r.PushConstants = append(r.PushConstants, PushConstantRange{
			Offset:    off[0],
			Size:      off[1],
			StageMask: pcRanges[off],
		})
	}

	sortInts(setOrder)
	for _, idx := range setOrder {
		ds := setMap[idx]
		sortBindings(ds.Bindings)
		r.Sets = append(r.Sets, *ds)
	}

	return r, nil
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func sortBindings(b []Binding) {
	for i := 1; i < len(b); i++ {
		for j := i; j > 0 && b[j-1].Index > b[j].Index; j-- {
			b[j-1], b[j] = b[j], b[j-1]
		}
	}
}

func descriptorType(storageClass uint32, isBlock bool) (vk.DescriptorType, bool) {
	switch storageClass {
	case storageClassUniform:
		return vk.DescriptorTypeUniformBuffer, true
	case storageClassStorageBuffer:
		return vk.DescriptorTypeStorageBuffer, true
	}
	return 0, false
}

func opaqueDescriptorType(kind opaqueKind) vk.DescriptorType {
	switch kind {
	case opaqueSampler:
		return vk.DescriptorTypeSampler
	case opaqueSampledImage:
		return vk.DescriptorTypeCombinedImageSampler
	default:
		return vk.DescriptorTypeSampledImage
	}
}

// blockInfo is an intermediate per-variable description used while walking
// a parsed module.
type blockInfo struct {
	set, binding uint32
	storageClass uint32
	offset, size int
	isBlock      bool
	isOpaque     bool
	opaqueType   vk.DescriptorType
	name         string
	count        int
}

// ValidatePushConstantSize asserts that the maximum offset+size across all
// push-constant ranges equals expected. A no-op when debug is off.
func (r *Reflection) ValidatePushConstantSize(expected int) error {
	if !r.debug {
		return nil
	}
	max := 0
	for _, pc := range r.PushConstants {
		if end := pc.Offset + pc.Size; end > max {
			max = end
		}
	}
	if max != expected {
		return fmt.Errorf("reflect: push constant size mismatch: want %d, got %d", expected, max)
	}
	return nil
}

// ValidateUBOSize asserts that the reflected block size for (set, binding)
// equals expected. A no-op when debug is off.
func (r *Reflection) ValidateUBOSize(set, binding, expected int) error {
	if !r.debug {
		return nil
	}
	for _, ds := range r.Sets {
		if ds.Index != set {
			continue
		}
		for _, b := range ds.Bindings {
			if b.Index != binding {
				continue
			}
			if b.BlockSize != expected {
				return fmt.Errorf("reflect: UBO size mismatch at (set=%d, binding=%d): want %d, got %d",
					set, binding, expected, b.BlockSize)
			}
			return nil
		}
	}
	return fmt.Errorf("reflect: no binding found at (set=%d, binding=%d)", set, binding)
}

func parseModule(code []uint32) (*module, error) {
	if len(code) < 5 || code[0] != spirvMagic {
		return nil, fmt.Errorf("reflect: not a SPIR-V module (bad magic)")
	}
	m := &module{
		words:         code,
		pointers:      map[uint32]pointerInfo{},
		structMembers: map[uint32][]uint32{},
		memberOffset:  map[uint32]map[uint32]uint32{},
		vecType:       map[uint32]vecInfo{},
		matType:       map[uint32]matInfo{},
		arrType:       map[uint32]arrInfo{},
		scalType:      map[uint32]int{},
		binding:       map[uint32]uint32{},
		set:           map[uint32]uint32{},
		variables:     map[uint32]uint32{},
		constants:     map[uint32]uint32{},
		opaque:        map[uint32]opaqueKind{},
		names:         map[uint32]string{},
	}
	i := 5
	for i < len(code) {
		word := code[i]
		wordCount := word >> 16
		opcode := word & 0xffff
		if wordCount == 0 || i+int(wordCount) > len(code) {
			return nil, fmt.Errorf("reflect: malformed instruction at word %d", i)
		}
		ops := code[i+1 : i+int(wordCount)]
		m.visit(opcode, ops)
		i += int(wordCount)
	}
	return m, nil
}

func (m *module) visit(opcode uint32, ops []uint32) {
	switch opcode {
	case opName:
		if len(ops) >= 2 {
			m.names[ops[0]] = decodeLiteralString(ops[1:])
		}
	case opTypeFloat, opTypeInt:
		if len(ops) >= 2 {
			m.scalType[ops[0]] = int(ops[1]) / 8
		}
	case opTypeVector:
		if len(ops) >= 3 {
			m.vecType[ops[0]] = vecInfo{comp: ops[1], count: ops[2]}
		}
	case opTypeMatrix:
		if len(ops) >= 3 {
			m.matType[ops[0]] = matInfo{col: ops[1], count: ops[2]}
		}
	case opTypeArray:
		if len(ops) >= 3 {
			m.arrType[ops[0]] = arrInfo{elem: ops[1], length: m.constants[ops[2]]}
		}
	case opTypeRuntime:
		if len(ops) >= 2 {
			m.arrType[ops[0]] = arrInfo{elem: ops[1], length: 0}
		}
	case opConstant:
		if len(ops) >= 3 {
			m.constants[ops[1]] = ops[2]
		}
	case opTypeImage:
		if len(ops) >= 1 {
			m.opaque[ops[0]] = opaqueImage
		}
	case opTypeSampler:
		if len(ops) >= 1 {
			m.opaque[ops[0]] = opaqueSampler
		}
	case opTypeSampledImg:
		if len(ops) >= 1 {
			m.opaque[ops[0]] = opaqueSampledImage
		}
	case opTypeStruct:
		if len(ops) >= 1 {
			m.structMembers[ops[0]] = append([]uint32{}, ops[1:]...)
		}
	case opTypePointer:
		if len(ops) >= 3 {
			m.pointers[ops[0]] = pointerInfo{storageClass: ops[1], pointee: ops[2]}
		}
	case opVariable:
		if len(ops) >= 3 {
			m.variables[ops[1]] = ops[0]
		}
	case opDecorate:
		if len(ops) >= 2 {
			switch ops[1] {
			case decorationBinding:
				if len(ops) >= 3 {
					m.binding[ops[0]] = ops[2]
				}
			case decorationDescriptorSet:
				if len(ops) >= 3 {
					m.set[ops[0]] = ops[2]
				}
			case decorationArrayStride:
				if len(ops) >= 3 {
					info := m.arrType[ops[0]]
					info.stride = ops[2]
					m.arrType[ops[0]] = info
				}
			case decorationMatrixStride:
				if len(ops) >= 3 {
					info := m.matType[ops[0]]
					info.stride = ops[2]
					m.matType[ops[0]] = info
				}
			}
		}
	case opMemberDecorate:
		if len(ops) >= 4 && ops[2] == decorationOffset {
			structID, member, offset := ops[0], ops[1], ops[3]
			if m.memberOffset[structID] == nil {
				m.memberOffset[structID] = map[uint32]uint32{}
			}
			m.memberOffset[structID][member] = offset
		}
	}
}

// blocks enumerates every UniformConstant/Uniform/StorageBuffer/PushConstant
// variable in the module along with its resolved byte size (for buffer-backed
// storage classes) and descriptor decorations.
func (m *module) blocks() []blockInfo {
	var out []blockInfo
	for varID, ptrTypeID := range m.variables {
		ptr, ok := m.pointers[ptrTypeID]
		if !ok {
			continue
		}
		switch ptr.storageClass {
		case storageClassUniform, storageClassStorageBuffer, storageClassPushConstant, storageClassUniformConstant:
		default:
			continue
		}
		// An array of opaque descriptors (e.g. a bound texture array) is
		// reflected as a single binding whose Count is the array length;
		// element type, not the array type itself, carries the opaque kind.
		pointee, count := m.resolveArray(ptr.pointee)
		if kind, ok := m.opaque[pointee]; ok {
			out = append(out, blockInfo{
				set:        m.set[varID],
				binding:    m.binding[varID],
				isOpaque:   true,
				opaqueType: opaqueDescriptorType(kind),
				name:       m.names[varID],
				count:      count,
			})
			continue
		}
		size := 0
		isBlock := false
		if members, ok := m.structMembers[pointee]; ok {
			isBlock = true
			offsets := m.memberOffset[pointee]
			for idx, memberType := range members {
				off := int(offsets[uint32(idx)])
				sz := m.sizeOf(memberType)
				if off+sz > size {
					size = off + sz
				}
			}
		}
		out = append(out, blockInfo{
			set:          m.set[varID],
			binding:      m.binding[varID],
			storageClass: ptr.storageClass,
			offset:       0,
			size:         size,
			isBlock:      isBlock,
			name:         m.names[varID],
			count:        count,
		})
	}
	// Push constants carry their offset per-member, not per-variable; the
	// above loop reports size as the full block, offset 0, which matches a
	// single push_constant block per stage (the common case this engine's
	// shaders use).
	return out
}

// resolveArray peels a single layer of OpTypeArray/OpTypeRuntime off typeID,
// returning the element type and the array length. A runtime array (length
// unknown at compile time, e.g. a bindless texture table) resolves to a
// count of 1, matching the rest of this package's one-binding-per-descriptor
// model; non-array types resolve to themselves with a count of 1.
func (m *module) resolveArray(typeID uint32) (elem uint32, count int) {
	if at, ok := m.arrType[typeID]; ok {
		length := int(at.length)
		if length == 0 {
			length = 1
		}
		return at.elem, length
	}
	return typeID, 1
}

func (m *module) sizeOf(typeID uint32) int {
	if sz, ok := m.scalType[typeID]; ok {
		return sz
	}
	if v, ok := m.vecType[typeID]; ok {
		return m.sizeOf(v.comp) * int(v.count)
	}
	if mt, ok := m.matType[typeID]; ok {
		stride := int(mt.stride)
		if stride == 0 {
			stride = m.sizeOf(mt.col)
		}
		return stride * int(mt.count)
	}
	if at, ok := m.arrType[typeID]; ok {
		stride := int(at.stride)
		if stride == 0 {
			stride = m.sizeOf(at.elem)
		}
		return stride * int(at.length)
	}
	if members, ok := m.structMembers[typeID]; ok {
		offsets := m.memberOffset[typeID]
		size := 0
		for idx, mem := range members {
			off := int(offsets[uint32(idx)])
			sz := m.sizeOf(mem)
			if off+sz > size {
				size = off + sz
			}
		}
		return size
	}
	return 0
}

// decodeLiteralString decodes a SPIR-V literal string: 4 bytes per word,
// little-endian, NUL-terminated, trailing words zero-padded.
func decodeLiteralString(words []uint32) string {
	b := make([]byte, 0, len(words)*4)
	for _, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(b)
			}
			b = append(b, c)
		}
	}
	return string(b)
}

// encodeWord packs a SPIR-V instruction header (word count, opcode).
func encodeWord(wordCount, opcode uint32) uint32 {
	return wordCount<<16 | opcode
}
