package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/StrawberryNinjago/platformtriage/internal/engine"
	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

type renderOptions struct {
	colorize    bool
	explainRank bool
}

type palette struct {
	fail, warn, pass, unknown, bold, dim *color.Color
}

func newPalette(colorize bool) palette {
	p := palette{
		fail:    color.New(color.FgRed, color.Bold),
		warn:    color.New(color.FgYellow, color.Bold),
		pass:    color.New(color.FgGreen, color.Bold),
		unknown: color.New(color.FgMagenta, color.Bold),
		bold:    color.New(color.Bold),
		dim:     color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.fail, p.warn, p.pass, p.unknown, p.bold, p.dim} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) health(h models.HealthStatus) string {
	switch h {
	case models.HealthFail:
		return p.fail.Sprint(h)
	case models.HealthWarn:
		return p.warn.Sprint(h)
	case models.HealthPass:
		return p.pass.Sprint(h)
	}
	return p.unknown.Sprint(h)
}

func (p palette) severity(s models.Severity) string {
	switch s {
	case models.SeverityError:
		return p.fail.Sprint(s)
	case models.SeverityWarn:
		return p.warn.Sprint(s)
	}
	return p.dim.Sprint(s)
}

// writeReport renders a human-readable report.
func writeReport(w io.Writer, result models.TriageResult, opts renderOptions) error {
	p := newPalette(opts.colorize)
	bw := bufio.NewWriter(w)

	scope := result.Selector
	if scope == "" && result.Release != "" {
		scope = "release " + result.Release
	}
	if scope == "" {
		scope = "all objects"
	}
	fmt.Fprintf(bw, "%s %s (%s)\n", p.bold.Sprint("Namespace"), result.Namespace, scope)

	pods := result.Health.Pods
	fmt.Fprintf(bw, "%s %s  pods %d total, %d running, %d pending, %d crashloop, %d image-pull, %d not ready  deployments %s\n",
		p.bold.Sprint("Health"), p.health(result.Health.Overall),
		pods.Total, pods.Running, pods.Pending, pods.CrashLoop, pods.ImagePullBackOff, pods.NotReady,
		result.Health.DeploymentsReady,
	)

	if result.PrimaryFailure != nil {
		fmt.Fprintln(bw)
		writeFinding(bw, p, "PRIMARY FAILURE", *result.PrimaryFailure)
		if opts.explainRank && result.PrimaryFailureDebug != nil {
			writeRankDebug(bw, p, result.PrimaryFailureDebug)
		}
	}
	if result.TopWarning != nil {
		fmt.Fprintln(bw)
		writeFinding(bw, p, "TOP WARNING", *result.TopWarning)
	}

	fmt.Fprintln(bw)
	if len(result.Findings) == 0 {
		fmt.Fprintln(bw, p.pass.Sprint("No findings."))
		return bw.Flush()
	}
	fmt.Fprintf(bw, "%s (%d)\n", p.bold.Sprint("FINDINGS"), len(result.Findings))
	for i, f := range result.Findings {
		fmt.Fprintf(bw, "  %d. [%s] %s  %s\n", i+1, p.severity(f.Severity), f.Code, f.Title)
	}
	return bw.Flush()
}

func writeFinding(w io.Writer, p palette, heading string, f models.Finding) {
	fmt.Fprintf(w, "%s  %s  [%s, owner %s]\n", p.bold.Sprint(heading), f.Code, p.severity(f.Severity), f.Owner)
	fmt.Fprintf(w, "  %s\n", f.Title)
	if f.Explanation != "" {
		fmt.Fprintf(w, "  %s\n", f.Explanation)
	}
	if len(f.Evidence) > 0 {
		fmt.Fprintln(w, "  Evidence:")
		for _, ev := range f.Evidence {
			line := ev.Kind + "/" + ev.Name
			if ev.Message != "" {
				line += ": " + ev.Message
			}
			fmt.Fprintf(w, "    - %s\n", line)
		}
	}
	if len(f.NextSteps) > 0 {
		fmt.Fprintln(w, "  Next steps:")
		for i, step := range f.NextSteps {
			fmt.Fprintf(w, "    %d. %s\n", i+1, step)
		}
	}
}

func writeRankDebug(w io.Writer, p palette, debug *models.RankDebug) {
	parts := make([]string, 0, len(debug.Breakdown))
	for _, factor := range []string{engine.FactorSeverity, engine.FactorCodePriority, engine.FactorBlastRadius, engine.FactorReadinessPenalty} {
		if v, ok := debug.Breakdown[factor]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", factor, v))
		}
	}
	fmt.Fprintf(w, "  %s score %d (%s)\n", p.dim.Sprint("rank:"), debug.Score, strings.Join(parts, " "))
	if len(debug.Candidates) > 0 {
		fmt.Fprintf(w, "  %s %s\n", p.dim.Sprint("candidates:"), strings.Join(debug.Candidates, ", "))
	}
}
