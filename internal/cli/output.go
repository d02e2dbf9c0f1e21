package cli

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora/v3"
)

// printer writes human-readable CLI output.
type printer struct {
	out io.Writer
	au  aurora.Aurora
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, au: aurora.NewAurora(useColor)}
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

func (p *printer) success(format string, args ...any) {
	fmt.Fprintln(p.out, p.au.Green(fmt.Sprintf(format, args...)))
}

func (p *printer) failure(format string, args ...any) {
	fmt.Fprintln(p.out, p.au.Red(fmt.Sprintf(format, args...)))
}

func (p *printer) warning(format string, args ...any) {
	fmt.Fprintln(p.out, p.au.Yellow(fmt.Sprintf(format, args...)))
}

// stateColor colors a status word for the status table.
func (p *printer) stateColor(state string) aurora.Value {
	switch state {
	case stateApplied:
		return p.au.Green(state)
	case statePending:
		return p.au.Cyan(state)
	case stateOrphaned:
		return p.au.Yellow(state)
	default:
		return p.au.Red(state)
	}
}
