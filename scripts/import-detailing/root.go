package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/precast-engine/pkg/detailing"
	"github.com/ekaya-inc/precast-engine/pkg/logging"
)

type rootOptions struct {
	dialectPath string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "import-detailing",
		Short:         "Preview and commit structural-detailing exports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dialectPath, "dialect", "", "YAML dialect file (default: built-in aliases)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	cmd.AddCommand(newPreviewCmd(opts))
	cmd.AddCommand(newCommitCmd(opts))
	cmd.AddCommand(newResumeCmd())
	return cmd
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	return logging.NewCLILogger(o.verbose)
}

func (o *rootOptions) normalizer(logger *zap.Logger, fallbackPath string) (*detailing.Normalizer, error) {
	path := o.dialectPath
	if path == "" {
		path = fallbackPath
	}
	if path == "" {
		return detailing.NewNormalizer(nil, logger), nil
	}
	dialect, err := detailing.LoadDialect(path)
	if err != nil {
		return nil, err
	}
	return detailing.NewNormalizer(dialect, logger), nil
}

func readFiles(paths []string) ([]detailing.SourceFile, error) {
	files := make([]detailing.SourceFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		files = append(files, detailing.SourceFile{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
