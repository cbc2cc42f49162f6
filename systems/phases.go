package systems

import (
	"slices"

	"github.com/pthm-cable/hopalong/telemetry"
)

// Scheduler tasks a phase can run in.
const (
	TaskFrame      = "frame"
	TaskRegenerate = "regenerate"
)

// PhaseInfo labels one timed phase of a step for display.
type PhaseInfo struct {
	ID          string // telemetry phase name
	Name        string
	Description string
	Task        string
}

// phases is in step order.
var phases = []PhaseInfo{
	{ID: telemetry.PhaseCamera, Name: "Camera", Description: "eases the camera toward the pointer", Task: TaskFrame},
	{ID: telemetry.PhaseLevels, Name: "Levels", Description: "scrolls sets and refreshes wrapped ones", Task: TaskFrame},
	{ID: telemetry.PhasePresent, Name: "Present", Description: "hands the frame to the surface", Task: TaskFrame},
	{ID: telemetry.PhaseRegenerate, Name: "Regenerate", Description: "iterates a new orbit", Task: TaskRegenerate},
}

// Phases returns every phase in step order.
func Phases() []PhaseInfo {
	return slices.Clone(phases)
}

// PhasesOf returns the phases timed inside a scheduler task.
func PhasesOf(task string) []PhaseInfo {
	var out []PhaseInfo
	for _, p := range phases {
		if p.Task == task {
			out = append(out, p)
		}
	}
	return out
}
