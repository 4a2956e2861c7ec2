package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/precast-engine/pkg/filter"
	"github.com/ekaya-inc/precast-engine/pkg/models"
	"github.com/ekaya-inc/precast-engine/pkg/pieces"
	"github.com/ekaya-inc/precast-engine/pkg/session"
)

type resumeOutput struct {
	Display     session.Display     `json:"display"`
	Applied     filter.State        `json:"applied"`
	Summary     pieces.Summary      `json:"summary"`
	Options     filter.Options      `json:"options"`
	Groups      []models.PieceGroup `json:"groups"`
	Released    []string            `json:"released"`
	SessionFile string              `json:"session_file,omitempty"`
}

func newResumeCmd() *cobra.Command {
	var (
		filters    filterFlags
		clearSaved bool
		sessionOut string
	)

	cmd := &cobra.Command{
		Use:   "resume SESSION_FILE",
		Short: "Reopen a saved session without the source files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open session: %w", err)
			}
			snap, err := session.Decode(f)
			f.Close()
			if err != nil {
				return err
			}

			sess := snap.Session()
			if clearSaved {
				sess = sess.Clear()
			}
			sess = sess.WithStaged(filters.apply(cmd, sess.Staged)).Apply()

			out := resumeOutput{
				Display:  snap.Display,
				Applied:  sess.Applied,
				Summary:  sess.Summary(),
				Options:  sess.Options(),
				Groups:   sess.Visible(),
				Released: snap.Released,
			}

			if sessionOut != "" {
				display := snap.Display
				display.SavedAt = time.Now().UTC()
				if out.SessionFile, err = writeSession(sessionOut, session.New(sess, snap.Released, display)); err != nil {
					return err
				}
			}

			return writeJSON(out)
		},
	}

	filters.bind(cmd)
	cmd.Flags().BoolVar(&clearSaved, "clear", false, "Drop the saved selections before applying new ones")
	cmd.Flags().StringVar(&sessionOut, "save-session", "", "Write the updated session document to this directory")
	return cmd
}
