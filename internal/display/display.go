// Package display renders operation results for the terminal.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"logdb-backup/internal/backup"
	"logdb-backup/internal/health"
	"logdb-backup/internal/logclean"
)

// Renderer writes human- or machine-readable output.
type Renderer struct {
	out     io.Writer
	passTag func(format string, a ...interface{}) string
	failTag func(format string, a ...interface{}) string
	infoTag func(format string, a ...interface{}) string
}

// NewRenderer creates a renderer. noColor disables ANSI colors,
// which fatih/color also does automatically for non-terminals.
func NewRenderer(out io.Writer, noColor bool) *Renderer {
	if noColor {
		color.NoColor = true
	}
	if out == nil {
		out = os.Stdout
	}
	return &Renderer{
		out:     out,
		passTag: color.New(color.FgGreen, color.Bold).SprintfFunc(),
		failTag: color.New(color.FgRed, color.Bold).SprintfFunc(),
		infoTag: color.New(color.FgCyan).SprintfFunc(),
	}
}

// HealthReport renders the probe battery as a table or JSON.
func (r *Renderer) HealthReport(report *health.Report, format string) error {
	if format == "json" {
		return r.renderJSON(report)
	}

	fmt.Fprintf(r.out, "Health check for %s (%s)\n\n", report.Database, report.Engine)
	w := tabwriter.NewWriter(r.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROBE\tSTATUS\tDETAIL")
	for _, result := range report.Results {
		var tag string
		switch result.Status {
		case health.StatusPass:
			tag = r.passTag("PASS")
		case health.StatusFail:
			tag = r.failTag("FAIL")
		default:
			tag = r.infoTag("INFO")
		}
		name := result.Name
		if result.Mandatory {
			name += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, tag, result.Detail)
	}
	w.Flush()

	fmt.Fprintln(r.out)
	if report.Passed {
		fmt.Fprintln(r.out, r.passTag("Overall: HEALTHY")+" (all mandatory probes passed)")
	} else {
		fmt.Fprintln(r.out, r.failTag("Overall: UNHEALTHY")+" (a mandatory probe failed)")
	}
	return nil
}

// ArtifactList renders the artifact store contents.
func (r *Renderer) ArtifactList(artifacts []*backup.Artifact, format string) error {
	switch format {
	case "json":
		return r.renderJSON(artifactRows(artifacts))
	case "yaml":
		data, err := yaml.Marshal(artifactRows(artifacts))
		if err != nil {
			return err
		}
		_, err = r.out.Write(data)
		return err
	}

	if len(artifacts) == 0 {
		fmt.Fprintln(r.out, "No backup artifacts found.")
		return nil
	}
	w := tabwriter.NewWriter(r.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIER\tARTIFACT\tKIND\tAGE\tSIZE\tMANIFEST")
	for _, artifact := range artifacts {
		manifest := "missing"
		if artifact.Manifest != nil {
			manifest = "ok"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			artifact.Tier, artifact.Name, artifact.Kind,
			formatAge(time.Since(artifact.ModTime)),
			logclean.FormatBytes(artifact.Size), manifest)
	}
	return w.Flush()
}

// BackupResult summarizes a completed backup run.
func (r *Renderer) BackupResult(result *backup.Result) {
	fmt.Fprintf(r.out, "%s %s (%s, %d rows recorded)\n",
		r.passTag("Backup written:"), result.ArtifactPath,
		logclean.FormatBytes(result.Manifest.SizeBytes), result.Manifest.RowCount)
	if result.Retention != nil && result.Retention.Deleted > 0 {
		fmt.Fprintf(r.out, "Retention: removed %d expired artifact(s), freed %s\n",
			result.Retention.Deleted, logclean.FormatBytes(result.Retention.BytesFreed))
	}
}

// CleanReport summarizes a log cleanup pass.
func (r *Renderer) CleanReport(report *logclean.Report) {
	verb := "Removed"
	if report.DryRun {
		verb = "Would remove"
	}
	for _, removal := range report.Removed {
		fmt.Fprintf(r.out, "%s %s (%s tree, age %s, %s)\n",
			verb, removal.Path, removal.Tree,
			formatAge(removal.Age), logclean.FormatBytes(removal.Bytes))
	}
	for _, pruned := range report.PrunedEmpty {
		fmt.Fprintf(r.out, "%s empty directory %s\n", verb, pruned)
	}
	for _, errMsg := range report.Errors {
		fmt.Fprintln(r.out, r.failTag("Error: ")+errMsg)
	}
	fmt.Fprintf(r.out, "%s: %d subtree(s), %s freed\n",
		map[bool]string{true: "Dry run total", false: "Total"}[report.DryRun],
		len(report.Removed), logclean.FormatBytes(report.BytesFreed))
}

func (r *Renderer) renderJSON(v interface{}) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// artifactRow is the machine-readable projection of an artifact.
type artifactRow struct {
	Tier     string    `json:"tier" yaml:"tier"`
	Name     string    `json:"name" yaml:"name"`
	Kind     string    `json:"kind" yaml:"kind"`
	ModTime  time.Time `json:"mod_time" yaml:"mod_time"`
	Size     int64     `json:"size" yaml:"size"`
	Manifest bool      `json:"has_manifest" yaml:"has_manifest"`
}

func artifactRows(artifacts []*backup.Artifact) []artifactRow {
	rows := make([]artifactRow, 0, len(artifacts))
	for _, artifact := range artifacts {
		rows = append(rows, artifactRow{
			Tier:     string(artifact.Tier),
			Name:     artifact.Name,
			Kind:     string(artifact.Kind),
			ModTime:  artifact.ModTime,
			Size:     artifact.Size,
			Manifest: artifact.Manifest != nil,
		})
	}
	return rows
}

func formatAge(age time.Duration) string {
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd", int(age.Hours()/24))
	}
}
