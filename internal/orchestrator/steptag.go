package orchestrator

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/vizier-dev/vizier/pkg/models"
)

// tagPalette colors step tags. The color is derived from the step id, so a
// step keeps its color across the whole run.
var tagPalette = []color.Attribute{
	color.FgCyan,
	color.FgGreen,
	color.FgYellow,
	color.FgMagenta,
	color.FgBlue,
	color.FgRed,
}

// stepTag returns the colored "[step N]" prefix for log lines.
func stepTag(id int) string {
	attr := tagPalette[id%len(tagPalette)]
	return color.New(attr).Sprintf("[step %d]", id)
}

func (o *Orchestrator) logf(step *models.Step, format string, args ...any) {
	fmt.Fprintf(o.out, "%s %s\n", stepTag(step.ID), fmt.Sprintf(format, args...))
}
