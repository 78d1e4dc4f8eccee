package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/tagmanager/internal/config"
	"github.com/gyaneshwarpardhi/tagmanager/internal/container"
)

// FileResult is the validation outcome for one container document.
type FileResult struct {
	Path        string `json:"path"`
	ContainerID string `json:"containerId,omitempty"`
	Tags        int    `json:"tags"`
	Valid       bool   `json:"valid"`
	Error       string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <container-file>...",
		Short: "Validate container documents (JSON or YAML)",
		Long: `Validate container documents strictly: ids present and unique, tag types
known and carrying their payload, triggers known and well formed, and regex
patterns compiling.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]FileResult, 0, len(args))
			failed := 0
			for _, path := range args {
				r := validateFile(path)
				if !r.Valid {
					failed++
				}
				results = append(results, r)
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				if err := writeJSON(out, results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if r.Valid {
						fmt.Fprintf(out, "✓ %s (%s, %d tags)\n", r.Path, r.ContainerID, r.Tags)
						continue
					}
					fmt.Fprintf(out, "✗ %s\n  %s\n", r.Path, r.Error)
				}
			}
			if failed > 0 {
				return fmt.Errorf("validation failed for %d of %d file(s)", failed, len(args))
			}
			return nil
		},
	}
}

func validateFile(path string) FileResult {
	r := FileResult{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	doc, err := config.ReadDoc(path, data)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.ContainerID = doc.ContainerID
	r.Tags = len(doc.Tags)
	if err := container.Validate(doc); err != nil {
		r.Error = err.Error()
		return r
	}
	r.Valid = true
	return r
}
