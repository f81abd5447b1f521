// Package cli renders command output for the lfnwatch binary.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/cwbudde/lfnwatch/batch"
	"github.com/cwbudde/lfnwatch/capture"
	"github.com/cwbudde/lfnwatch/dsp/transform"
	"github.com/cwbudde/lfnwatch/internal/cpu"
	"github.com/cwbudde/lfnwatch/measure/alert"
	"github.com/cwbudde/lfnwatch/measure/peaks"
)

// Color palette
var (
	alertColor = lipgloss.Color("#D70000")
	okColor    = lipgloss.Color("#5FAF5F")
	mutedColor = lipgloss.Color("#888888")
	textColor  = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)

	AlertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(alertColor)

	OKStyle = lipgloss.NewStyle().
		Foreground(okColor)

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(20)

	ValueStyle = lipgloss.NewStyle().
			Bold(true)
)

func kv(b *strings.Builder, key string, value any) {
	fmt.Fprintf(b, "  %s %s\n", KeyStyle.Render(key), ValueStyle.Render(fmt.Sprint(value)))
}

func peakText(p peaks.Record) string {
	return fmt.Sprintf("%.1f dB at %.1f Hz", p.LevelDB, p.FrequencyHz)
}

// RenderReport formats one batch file report.
func RenderReport(r batch.FileReport) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(r.Path))
	b.WriteByte('\n')
	if r.Err != nil {
		fmt.Fprintf(&b, "  %s %v\n", AlertStyle.Render("error:"), r.Err)
		return b.String()
	}
	kv(&b, "Sample rate", fmt.Sprintf("%.0f Hz, %d ch", r.SampleRate, r.Channels))
	kv(&b, "Duration", r.Duration.Round(time.Millisecond))
	kv(&b, "Blocks", r.Blocks)
	kv(&b, "Level", fmt.Sprintf("%.1f dB RMS, %.1f dB peak", r.Level.RMSDB, r.Level.PeakDB))
	if r.Level.Weighted {
		kv(&b, "Weighted", fmt.Sprintf("%.1f dB(A), %.1f dB(C), C-A %.1f dB", r.Level.LAeqDB, r.Level.LCeqDB, r.Level.CMinusA()))
	}
	if r.Level.Clipped > 0 {
		kv(&b, "Clipped samples", AlertStyle.Render(fmt.Sprint(r.Level.Clipped)))
	}
	for _, m := range r.Max {
		label := m.Band.String() + " peak"
		if !m.Found {
			kv(&b, label, "none in band")
			continue
		}
		text := peakText(m.Peak)
		if r.Alerted(m.Band) {
			text = AlertStyle.Render(text + "  ALERT")
		}
		kv(&b, label, text)
	}
	if len(r.Alerts) == 0 {
		fmt.Fprintf(&b, "  %s\n", OKStyle.Render("no alerts"))
	}
	return b.String()
}

// RenderAlert formats a live alert as one line.
func RenderAlert(e alert.Event) string {
	return fmt.Sprintf("%s %s %s %s",
		KeyStyle.UnsetWidth().Render(e.Timestamp.Format("15:04:05")),
		AlertStyle.Render(e.Band.String()+" ALERT"),
		ValueStyle.Render(fmt.Sprintf("%.1f dB at %.1f Hz", e.LevelDB, e.FrequencyHz)),
		KeyStyle.UnsetWidth().Render(fmt.Sprintf("(threshold %.1f dB)", e.ThresholdDB)),
	)
}

// RenderSummary formats a capture session summary.
func RenderSummary(s capture.Summary) string {
	var b strings.Builder
	state := OKStyle.Render(s.State.String())
	if s.State == capture.StateFailed {
		state = AlertStyle.Render(s.State.String())
	}
	fmt.Fprintf(&b, "%s %s\n", TitleStyle.Render("Session "+s.SessionID), state)
	kv(&b, "Elapsed", s.Elapsed.Round(time.Second))
	kv(&b, "Recorded", s.Recorded.Round(time.Millisecond))
	kv(&b, "Blocks analyzed", s.BlocksAnalyzed)
	kv(&b, "Blocks dropped", s.DroppedBlocks)
	if s.DiscardedBlocks > 0 {
		kv(&b, "Blocks discarded", s.DiscardedBlocks)
	}
	if s.PeakBuffers > 0 {
		kv(&b, "Peak block buffers", s.PeakBuffers)
	}
	kv(&b, "Alerts", s.Alerts)
	kv(&b, "Segments", fmt.Sprintf("%d finalized, %d failed", s.FinalizedSegments, s.FailedSegments))
	backend := s.Backend
	if s.Fallback {
		backend += " (fallback)"
	}
	kv(&b, "Backend", backend)
	for _, err := range s.Recovered {
		fmt.Fprintf(&b, "  %s %v\n", KeyStyle.UnsetWidth().Render("recovered:"), err)
	}
	if s.Err != nil {
		fmt.Fprintf(&b, "  %s %v\n", AlertStyle.Render("error:"), s.Err)
	}
	return b.String()
}

// RenderBackends lists transform backends and whether features support them.
func RenderBackends(entries []transform.Entry, features cpu.Features) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", TitleStyle.Render("Transform backends"),
		KeyStyle.UnsetWidth().Render("("+features.Architecture+", best "+cpu.BestLevel(features).String()+")"))
	for _, e := range entries {
		kind := "reference"
		if e.Accelerated {
			kind = "accelerated"
		}
		status := OKStyle.Render("available")
		if !cpu.Supports(features, e.Level) {
			status = KeyStyle.UnsetWidth().Render("unsupported")
		}
		fmt.Fprintf(&b, "  %s %-12s %-6s %s\n", KeyStyle.Render(e.Name), kind, e.Level.String(), status)
	}
	return b.String()
}

// PrintError prints an error message to stderr.
func PrintError(err error) {
	Fprint(os.Stderr, fmt.Sprintf("%s %v", AlertStyle.Render("Error:"), err))
}

// Fprint writes s followed by a newline.
func Fprint(w io.Writer, s string) {
	fmt.Fprintln(w, strings.TrimRight(s, "\n"))
}
