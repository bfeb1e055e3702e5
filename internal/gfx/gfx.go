// Package gfx defines the synchronization vocabulary shared by the frame graph:
// memory access scopes, pipeline stages, image layouts, hardware-queue classes
// and image formats. The values are API-neutral; a device backend maps them to
// its native enums when it records barriers.
package gfx

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"
)

// Access is the type of a memory access scope. Values are bit flags.
type Access uint32

// Memory access scopes.
const (
	AccessIndirectRead Access = 1 << iota
	AccessIndexRead
	AccessVertexRead
	AccessUniformRead
	AccessShaderRead
	AccessShaderWrite
	AccessColorRead
	AccessColorWrite
	AccessDepthRead
	AccessDepthWrite
	AccessTransferRead
	AccessTransferWrite
	AccessHostRead
	AccessHostWrite
	AccessMemoryRead
	AccessMemoryWrite

	AccessNone Access = 0
)

// accessWriteMask holds every access flag that modifies memory.
const accessWriteMask = AccessShaderWrite | AccessColorWrite | AccessDepthWrite |
	AccessTransferWrite | AccessHostWrite | AccessMemoryWrite

// HasWrite reports whether a contains at least one write access.
func (a Access) HasWrite() bool { return a&accessWriteMask != 0 }

// Writes returns only the write accesses of a.
func (a Access) Writes() Access { return a & accessWriteMask }

// Contains reports whether every flag of other is set in a.
func (a Access) Contains(other Access) bool { return a&other == other }

// Stage is the type of a pipeline synchronization scope. Values are bit flags.
type Stage uint32

// Pipeline stages.
const (
	StageTopOfPipe Stage = 1 << iota
	StageDrawIndirect
	StageVertexInput
	StageVertexShader
	StageFragmentShader
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageColorOutput
	StageComputeShader
	StageTransfer
	StageBottomOfPipe
	StageHost
	StageAllGraphics
	StageAllCommands

	StageNone Stage = 0
)

// Contains reports whether every flag of other is set in s.
func (s Stage) Contains(other Stage) bool { return s&other == other }

// Layout is the type of an image layout. Buffers ignore it.
type Layout uint8

// Image layouts.
const (
	LayoutUndefined Layout = iota
	LayoutGeneral
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutDepthStencilRead
	LayoutShaderRead
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresent
)

// QueueClass identifies a hardware-queue class. QueueIgnored means the
// resource is not owned by any queue class, so no ownership transfer is needed
// to start using it.
type QueueClass uint8

// Queue classes.
const (
	QueueIgnored QueueClass = iota
	QueueGraphics
	QueueCompute
	QueueTransfer
)

// Format is the pixel format of an image. The frame graph only compares
// formats to decide whether two promised images may share a pool.
type Format string

// Common formats.
const (
	FormatUndefined Format = ""
	FormatRGBA8     Format = "rgba8"
	FormatBGRA8     Format = "bgra8"
	FormatRGBA16F   Format = "rgba16f"
	FormatRGBA32F   Format = "rgba32f"
	FormatR32F      Format = "r32f"
	FormatRG16F     Format = "rg16f"
	FormatD32F      Format = "d32f"
	FormatD24S8     Format = "d24s8"
)

var accessNames = map[string]Access{
	"indirect_read":  AccessIndirectRead,
	"index_read":     AccessIndexRead,
	"vertex_read":    AccessVertexRead,
	"uniform_read":   AccessUniformRead,
	"shader_read":    AccessShaderRead,
	"shader_write":   AccessShaderWrite,
	"color_read":     AccessColorRead,
	"color_write":    AccessColorWrite,
	"depth_read":     AccessDepthRead,
	"depth_write":    AccessDepthWrite,
	"transfer_read":  AccessTransferRead,
	"transfer_write": AccessTransferWrite,
	"host_read":      AccessHostRead,
	"host_write":     AccessHostWrite,
	"memory_read":    AccessMemoryRead,
	"memory_write":   AccessMemoryWrite,
}

var stageNames = map[string]Stage{
	"top_of_pipe":          StageTopOfPipe,
	"draw_indirect":        StageDrawIndirect,
	"vertex_input":         StageVertexInput,
	"vertex_shader":        StageVertexShader,
	"fragment_shader":      StageFragmentShader,
	"early_fragment_tests": StageEarlyFragmentTests,
	"late_fragment_tests":  StageLateFragmentTests,
	"color_output":         StageColorOutput,
	"compute_shader":       StageComputeShader,
	"transfer":             StageTransfer,
	"bottom_of_pipe":       StageBottomOfPipe,
	"host":                 StageHost,
	"all_graphics":         StageAllGraphics,
	"all_commands":         StageAllCommands,
}

var layoutNames = []string{
	LayoutUndefined:              "undefined",
	LayoutGeneral:                "general",
	LayoutColorAttachment:        "color_attachment",
	LayoutDepthStencilAttachment: "depth_stencil_attachment",
	LayoutDepthStencilRead:       "depth_stencil_read",
	LayoutShaderRead:             "shader_read",
	LayoutTransferSrc:            "transfer_src",
	LayoutTransferDst:            "transfer_dst",
	LayoutPresent:                "present",
}

var queueNames = []string{
	QueueIgnored:  "ignored",
	QueueGraphics: "graphics",
	QueueCompute:  "compute",
	QueueTransfer: "transfer",
}

// flagString renders a bit set using the given name table, lowest bit first.
func flagString[T ~uint32](v T, names map[string]T) string {
	if v == 0 {
		return "none"
	}
	byBit := make(map[T]string, len(names))
	for name, flag := range names {
		byBit[flag] = name
	}
	var parts []string
	for rest := uint32(v); rest != 0; rest &= rest - 1 {
		bit := T(1) << bits.TrailingZeros32(rest)
		if name, ok := byBit[bit]; ok {
			parts = append(parts, name)
		} else {
			parts = append(parts, fmt.Sprintf("0x%x", uint32(bit)))
		}
	}
	return strings.Join(parts, "|")
}

func (a Access) String() string { return flagString(a, accessNames) }

func (s Stage) String() string { return flagString(s, stageNames) }

func (l Layout) String() string {
	if int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return fmt.Sprintf("Layout(%d)", l)
}

func (q QueueClass) String() string {
	if int(q) < len(queueNames) {
		return queueNames[q]
	}
	return fmt.Sprintf("QueueClass(%d)", q)
}

// ParseAccess parses one access name such as "shader_read".
func ParseAccess(name string) (Access, error) {
	if a, ok := accessNames[name]; ok {
		return a, nil
	}
	return AccessNone, fmt.Errorf("unknown access %q", name)
}

// ParseStage parses one stage name such as "fragment_shader".
func ParseStage(name string) (Stage, error) {
	if s, ok := stageNames[name]; ok {
		return s, nil
	}
	return StageNone, fmt.Errorf("unknown stage %q", name)
}

// ParseLayout parses a layout name such as "shader_read".
func ParseLayout(name string) (Layout, error) {
	for i, n := range layoutNames {
		if n == name {
			return Layout(i), nil
		}
	}
	return LayoutUndefined, fmt.Errorf("unknown layout %q", name)
}

// ParseQueue parses a queue class name such as "compute".
func ParseQueue(name string) (QueueClass, error) {
	for i, n := range queueNames {
		if n == name {
			return QueueClass(i), nil
		}
	}
	return QueueIgnored, fmt.Errorf("unknown queue class %q", name)
}

// AccessNames returns all access names in sorted order.
func AccessNames() []string { return sortedKeys(accessNames) }

// StageNames returns all stage names in sorted order.
func StageNames() []string { return sortedKeys(stageNames) }

// LayoutNames returns all layout names in declaration order.
func LayoutNames() []string { return append([]string(nil), layoutNames...) }

// QueueNames returns all queue class names in declaration order.
func QueueNames() []string { return append([]string(nil), queueNames...) }

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseFlags parses names joined with "|". "none" and "" parse to zero.
func parseFlags[T ~uint32](s string, parse func(string) (T, error)) (T, error) {
	var v T
	if s == "" || s == "none" {
		return v, nil
	}
	for _, name := range strings.Split(s, "|") {
		f, err := parse(strings.TrimSpace(name))
		if err != nil {
			return 0, err
		}
		v |= f
	}
	return v, nil
}

func (a Access) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Access) UnmarshalText(b []byte) error {
	v, err := parseFlags(string(b), ParseAccess)
	*a = v
	return err
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Stage) UnmarshalText(b []byte) error {
	v, err := parseFlags(string(b), ParseStage)
	*s = v
	return err
}

func (l Layout) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Layout) UnmarshalText(b []byte) error {
	v, err := ParseLayout(string(b))
	*l = v
	return err
}

func (q QueueClass) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

func (q *QueueClass) UnmarshalText(b []byte) error {
	v, err := ParseQueue(string(b))
	*q = v
	return err
}
