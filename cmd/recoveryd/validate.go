package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [files or directories]",
		Short: "Validate workflow definition files without starting the engine",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := definitionFiles(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("recoveryd: no definition files found")
			}

			failed := 0
			for _, file := range files {
				if err := validateFile(file); err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", file, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", file)
			}
			if failed > 0 {
				return fmt.Errorf("%d definition(s) failed validation", failed)
			}
			return nil
		},
	}
}

// definitionFiles expands each argument into JSON files: directories
// are scanned non-recursively, plain files pass through as-is.
func definitionFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("recoveryd: %w", err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.json"))
		if err != nil {
			return nil, fmt.Errorf("recoveryd: scan %s: %w", arg, err)
		}
		files = append(files, matches...)
	}
	return files, nil
}

func validateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	def, err := workflow.DecodeDefinition(data)
	if err != nil {
		return err
	}
	return workflow.Validate(def)
}
