package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/precast-engine/pkg/filter"
	"github.com/ekaya-inc/precast-engine/pkg/session"
)

// filterFlags are the facet selections shared by preview and resume.
type filterFlags struct {
	name          string
	types         []string
	sections      []string
	materialClass []string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Only show groups whose name contains this text")
	cmd.Flags().StringSliceVar(&f.types, "type", nil, "Only show these piece types")
	cmd.Flags().StringSliceVar(&f.sections, "section", nil, "Only show these sections")
	cmd.Flags().StringSliceVar(&f.materialClass, "material-class", nil, "Only show these material classes")
}

// apply overrides the selections of base that were given on the command
// line and leaves the others as they are.
func (f *filterFlags) apply(cmd *cobra.Command, base filter.State) filter.State {
	state := base
	if cmd.Flags().Changed("name") {
		state = state.WithName(f.name)
	}
	if cmd.Flags().Changed("type") {
		state = state.With(filter.DimensionType, f.types...)
	}
	if cmd.Flags().Changed("section") {
		state = state.With(filter.DimensionSection, f.sections...)
	}
	if cmd.Flags().Changed("material-class") {
		state = state.With(filter.DimensionMaterialClass, f.materialClass...)
	}
	return state
}

func writeSession(dir string, snap *session.Snapshot) (string, error) {
	path := filepath.Join(dir, session.Filename(snap.Display.ProjectCode))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create session file: %w", err)
	}
	defer f.Close()
	if err := session.Encode(f, snap); err != nil {
		return "", err
	}
	return path, nil
}
