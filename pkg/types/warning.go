package types

import "fmt"

// WarningKind classifies the non-fatal conditions reported while reading.
type WarningKind int

const (
	// WarnEmptyFile: the source had no bytes, Unix line ending assumed.
	WarnEmptyFile WarningKind = iota
	// WarnMaxMemTooSmall: max_mem was below the block size and got clamped.
	WarnMaxMemTooSmall
	// WarnMmapSkipped: an empty file was not memory mapped.
	WarnMmapSkipped
	// WarnMmapFallback: mapping failed and the chunked reader took over.
	WarnMmapFallback
)

func (k WarningKind) String() string {
	switch k {
	case WarnEmptyFile:
		return "empty_file"
	case WarnMaxMemTooSmall:
		return "max_mem_too_small"
	case WarnMmapSkipped:
		return "mmap_skipped"
	case WarnMmapFallback:
		return "mmap_fallback"
	default:
		return fmt.Sprintf("warning(%d)", int(k))
	}
}

// Warning is delivered to a WarnFunc; it never interrupts the operation that raised it.
type Warning struct {
	Kind    WarningKind
	Source  string
	Message string
}

func (w Warning) String() string {
	if w.Source == "" {
		return w.Message
	}
	return fmt.Sprintf("%s: %s", w.Source, w.Message)
}

type WarnFunc func(Warning)
