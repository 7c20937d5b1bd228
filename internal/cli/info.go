package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vasolab/vasostore/pkg/vaso"
)

// infoReport is the --json payload of the info command.
type infoReport struct {
	Path        string   `json:"path"`
	Format      string   `json:"format"`
	Name        string   `json:"name,omitempty"`
	CreatedUTC  string   `json:"created_utc,omitempty"`
	UpdatedUTC  string   `json:"updated_utc,omitempty"`
	Experiments int      `json:"experiments"`
	Samples     int      `json:"samples"`
	Snapshots   []string `json:"snapshots,omitempty"`
	Current     string   `json:"current_snapshot,omitempty"`
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <path>",
		Short: "Describe a project file, bundle, or legacy archive",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg, err := engineConfig()
	if err != nil {
		return err
	}

	format, err := vaso.DetectFormat(path)
	if err != nil {
		return err
	}
	report := infoReport{Path: path, Format: format}

	p, err := vaso.LoadProject(path, cfg)
	if err != nil {
		return err
	}
	report.Name = p.Name
	report.CreatedUTC = p.CreatedUTC
	report.UpdatedUTC = p.UpdatedUTC
	report.Experiments = len(p.Experiments)
	for _, exp := range p.Experiments {
		report.Samples += len(exp.Samples)
	}

	if format == vaso.FormatBundle {
		snaps, err := vaso.ListSnapshots(path)
		if err != nil {
			return err
		}
		for _, s := range snaps {
			report.Snapshots = append(report.Snapshots, s.Name)
			if s.Current {
				report.Current = s.Name
			}
		}
	}

	out := cmd.OutOrStdout()
	if flags.jsonMode {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "Path:        %s\n", report.Path)
	fmt.Fprintf(out, "Format:      %s\n", report.Format)
	if report.Name != "" {
		fmt.Fprintf(out, "Name:        %s\n", report.Name)
	}
	if report.CreatedUTC != "" {
		fmt.Fprintf(out, "Created:     %s\n", report.CreatedUTC)
	}
	if report.UpdatedUTC != "" {
		fmt.Fprintf(out, "Modified:    %s\n", report.UpdatedUTC)
	}
	fmt.Fprintf(out, "Experiments: %d\n", report.Experiments)
	fmt.Fprintf(out, "Samples:     %d\n", report.Samples)
	if len(report.Snapshots) > 0 {
		fmt.Fprintf(out, "Snapshots:   %d (current %s)\n", len(report.Snapshots), report.Current)
	}
	return nil
}
