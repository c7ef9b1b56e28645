package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/MikeSquared-Agency/cue/internal/analyzer"
	"github.com/MikeSquared-Agency/cue/internal/answer"
	"github.com/MikeSquared-Agency/cue/internal/transcription"
)

var (
	accent = lipgloss.Color("#00ff9f")
	dim    = lipgloss.Color("#6e7681")
	warn   = lipgloss.Color("#ffb86c")
)

type printerStyles struct {
	Partial  lipgloss.Style
	Final    lipgloss.Style
	Label    lipgloss.Style
	Question lipgloss.Style
	Meta     lipgloss.Style
	Code     lipgloss.Style
	Error    lipgloss.Style
}

func newPrinterStyles() printerStyles {
	return printerStyles{
		Partial:  lipgloss.NewStyle().Foreground(dim).Italic(true),
		Final:    lipgloss.NewStyle().Bold(true),
		Label:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		Question: lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1),
		Meta:     lipgloss.NewStyle().Foreground(dim),
		Code:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1),
		Error:    lipgloss.NewStyle().Bold(true).Foreground(warn),
	}
}

// printer writes the pipeline's output streams to a terminal.
type printer struct {
	mu       sync.Mutex
	out      io.Writer
	styles   printerStyles
	partials bool
}

func newPrinter(out io.Writer, partials bool) *printer {
	return &printer{out: out, styles: newPrinterStyles(), partials: partials}
}

func (p *printer) OnTranscript(_ string, ev transcription.Event) {
	if !ev.IsFinal && !p.partials {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case !ev.IsFinal:
		fmt.Fprintln(p.out, p.styles.Partial.Render("… "+ev.Text))
	case ev.Correction:
		fmt.Fprintf(p.out, "%s %s\n", p.styles.Label.Render("✎"), p.styles.Final.Render(ev.Text))
	default:
		fmt.Fprintf(p.out, "%s %s\n", p.styles.Label.Render("▸"), p.styles.Final.Render(ev.Text))
	}
}

func (p *printer) OnAnalysis(_ string, a analyzer.Analysis) {
	if !a.IsQuestion {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, p.styles.Meta.Render(describeAnalysis(a)))
}

func (p *printer) OnAnswer(_ string, res answer.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printAnswer(res)
}

func (p *printer) printAnswer(res answer.Result) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.styles.Question.Render("Q: "+res.Question))
	if res.Failed() {
		fmt.Fprintln(p.out, p.styles.Error.Render(fmt.Sprintf("answer failed (%s)", res.ErrorKind)))
	}
	fmt.Fprintln(p.out, res.Explanation)
	if res.Code != "" {
		fmt.Fprintln(p.out, p.styles.Code.Render(res.Code))
	}
	fmt.Fprintln(p.out, p.styles.Meta.Render(fmt.Sprintf("%s · %dms", res.Analysis.Category, res.Latency.Milliseconds())))
}

func describeAnalysis(a analyzer.Analysis) string {
	var flags []string
	if a.IsTechnical {
		flags = append(flags, "technical")
	}
	if a.IsCodingRequest {
		flags = append(flags, "coding")
	}
	if a.IsFollowUp {
		flags = append(flags, "follow-up")
	}
	s := fmt.Sprintf("  [%s]", a.Category)
	if len(flags) > 0 {
		s += " " + strings.Join(flags, ", ")
	}
	if len(a.Keywords) > 0 {
		s += " · " + strings.Join(a.Keywords, ", ")
	}
	return s
}
