package latex

import (
	"fmt"
	"os/exec"
)

// ToolStatus reports the availability of one toolchain binary.
type ToolStatus struct {
	Name      string
	Command   string
	Optional  bool
	Available bool
	Detail    string
}

// Toolchain reports which of the configured binaries can be found on PATH.
// dvipng and dvisvgm are each optional as long as the note types in use
// only need the other format.
func (b *Builder) Toolchain() []ToolStatus {
	reqs := []ToolStatus{
		{Name: "LaTeX", Command: b.latexBin},
		{Name: "dvipng (PNG output)", Command: b.dvipngBin, Optional: true},
		{Name: "dvisvgm (SVG output)", Command: b.dvisvgmBin, Optional: true},
	}
	for i := range reqs {
		if _, err := exec.LookPath(reqs[i].Command); err != nil {
			reqs[i].Detail = fmt.Sprintf("binary %q not found", reqs[i].Command)
			continue
		}
		reqs[i].Available = true
	}
	return reqs
}
