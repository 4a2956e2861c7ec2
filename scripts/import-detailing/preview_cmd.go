package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/precast-engine/pkg/detailing"
	"github.com/ekaya-inc/precast-engine/pkg/filter"
	"github.com/ekaya-inc/precast-engine/pkg/models"
	"github.com/ekaya-inc/precast-engine/pkg/pieces"
	"github.com/ekaya-inc/precast-engine/pkg/session"
)

type previewOutput struct {
	Header      models.ImportHeader `json:"header"`
	DisplayName string              `json:"display_name"`
	Summary     pieces.Summary      `json:"summary"`
	Options     filter.Options      `json:"options"`
	Groups      []models.PieceGroup `json:"groups"`
	Warnings    []string            `json:"warnings,omitempty"`
	SessionFile string              `json:"session_file,omitempty"`
}

func newPreviewCmd(root *rootOptions) *cobra.Command {
	var (
		filters    filterFlags
		sessionOut string
	)

	cmd := &cobra.Command{
		Use:   "preview FILE...",
		Short: "Parse and group exports without touching the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := root.logger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush on exit

			normalizer, err := root.normalizer(logger, "")
			if err != nil {
				return err
			}
			files, err := readFiles(args)
			if err != nil {
				return err
			}

			batch, err := normalizer.ParseBatch(files)
			if err != nil {
				return err
			}
			groups, err := pieces.Group(batch.Records)
			if err != nil {
				return err
			}

			sess := filter.NewSession(groups).WithStaged(filters.apply(cmd, filter.State{})).Apply()

			out := previewOutput{
				Header:      batch.Header,
				DisplayName: batch.DisplayName,
				Summary:     sess.Summary(),
				Options:     sess.Options(),
				Groups:      sess.Visible(),
				Warnings:    warningLines(batch.Warnings),
			}

			if sessionOut != "" {
				snap := session.New(sess, nil, session.Display{
					Label:       batch.DisplayName,
					ProjectCode: batch.Header.ProjectCode,
					ReportNames: batch.ReportNames,
					SavedAt:     time.Now().UTC(),
				})
				if out.SessionFile, err = writeSession(sessionOut, snap); err != nil {
					return err
				}
			}

			return writeJSON(out)
		},
	}

	filters.bind(cmd)
	cmd.Flags().StringVar(&sessionOut, "save-session", "", "Write a session document to this directory")
	return cmd
}

func warningLines(warnings []detailing.Warning) []string {
	lines := make([]string, len(warnings))
	for i, w := range warnings {
		lines[i] = w.String()
	}
	return lines
}
