package out

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Printer writes the human-facing lines of an interactive session.
type Printer struct {
	w       io.Writer
	info    *color.Color
	success *color.Color
	warn    *color.Color
	fail    *color.Color
}

// NewPrinter colours output only when enabled; callers disable it for non-terminals.
func NewPrinter(w io.Writer, enabled bool) *Printer {
	p := &Printer{
		w:       w,
		info:    color.New(color.FgCyan),
		success: color.New(color.FgGreen, color.Bold),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed, color.Bold),
	}
	for _, c := range []*color.Color{p.info, p.success, p.warn, p.fail} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) Plain(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) Info(format string, args ...any) {
	_, _ = p.info.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) Success(format string, args ...any) {
	_, _ = p.success.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) Warn(format string, args ...any) {
	_, _ = p.warn.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) Fail(format string, args ...any) {
	_, _ = p.fail.Fprintf(p.w, format+"\n", args...)
}
