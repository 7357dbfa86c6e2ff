package kernel

import "fmt"

// Label identifies an accelerator kernel kind from the closed set the
// producer may admit (spec §3, GLOSSARY "Kernel label / kind"). The
// MachSuite-derived default set has 11 members.
type Label int

const (
	AES Label = iota
	BULK
	CRS
	KMP
	KNN
	MERGE
	NW
	QUEUE
	STENCIL2D
	STENCIL3D
	STRIDED

	// DefaultNumLabels is the closed-set size used unless configuration
	// overrides it.
	DefaultNumLabels = 11
)

var labelNames = [DefaultNumLabels]string{
	"AES", "BULK", "CRS", "KMP", "KNN", "MERGE", "NW", "QUEUE",
	"STENCIL2D", "STENCIL3D", "STRIDED",
}

func (l Label) String() string {
	if int(l) >= 0 && int(l) < len(labelNames) {
		return labelNames[l]
	}
	return fmt.Sprintf("LABEL(%d)", int(l))
}

// ValidLabel reports whether label is within [0, numLabels), the admission
// rule from spec §7 ("Producer out-of-range label... rejected").
func ValidLabel(label Label, numLabels int) bool {
	return label >= 0 && int(label) < numLabels
}
