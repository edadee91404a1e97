package lineage

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBadInput means upstream contract was violated: the data can't be reconstructed as given
	ErrBadInput = errors.New("bad input")
	// ErrInvariant means an internal invariant was broken. It should never happen on valid input
	ErrInvariant = errors.New("internal invariant violated")
)

// WarningKind is for type of recoverable problem found during reconstruction
type WarningKind uint16

const (
	// WarningMissingROI is reported when detection has no polygon to correlate with
	WarningMissingROI WarningKind = iota
	// WarningUnreachable is reported when retained detection can't be reached from any root (cyclic links)
	WarningUnreachable
	// WarningMissingStatic is reported when detection has no matching row in static feature table
	WarningMissingStatic
)

func (kind WarningKind) String() string {
	switch kind {
	case WarningMissingROI:
		return "missing ROI"
	case WarningUnreachable:
		return "unreachable from roots"
	case WarningMissingStatic:
		return "no static features"
	default:
		return fmt.Sprintf("WarningKind(%d)", uint16(kind))
	}
}

// Warning describes a detection dropped from output
type Warning struct {
	Kind        WarningKind
	DetectionID int
	// Frame is 0-indexed frame as received
	Frame int
}

func (w Warning) String() string {
	return fmt.Sprintf("detection %d (frame %d) dropped: %s", w.DetectionID, w.Frame, w.Kind)
}
