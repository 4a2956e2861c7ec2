package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/precast-engine/pkg/apperrors"
	"github.com/ekaya-inc/precast-engine/pkg/config"
	"github.com/ekaya-inc/precast-engine/pkg/database"
	"github.com/ekaya-inc/precast-engine/pkg/logging"
	"github.com/ekaya-inc/precast-engine/pkg/repositories"
	"github.com/ekaya-inc/precast-engine/pkg/services"
)

func newCommitCmd(root *rootOptions) *cobra.Command {
	var (
		ownerID string
		policy  string
		confirm bool
	)

	cmd := &cobra.Command{
		Use:   "commit FILE...",
		Short: "Import exports into a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := uuid.Parse(ownerID)
			if err != nil {
				return fmt.Errorf("invalid --owner: %w", err)
			}

			cfg, err := config.Load(Version)
			if err != nil {
				return err
			}
			if policy == "" {
				policy = cfg.Import.DefaultPolicy
			}
			writePolicy, err := services.ParseWritePolicy(policy)
			if err != nil {
				return err
			}

			logger, err := root.logger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush on exit

			normalizer, err := root.normalizer(logger, cfg.Import.DialectPath)
			if err != nil {
				return err
			}
			files, err := readFiles(args)
			if err != nil {
				return err
			}

			db, err := database.NewConnection(cmd.Context(), &database.Config{
				URL:            cfg.Database.URL(),
				MaxConnections: 2,
			})
			if err != nil {
				return errors.New(logging.SanitizeError(err))
			}
			defer db.Close()

			ctx, cleanup, err := services.NewTenantContextFunc(db)(cmd.Context(), owner)
			if err != nil {
				return err
			}
			defer cleanup()

			projectRepo := repositories.NewProjectRepository()
			groupRepo := repositories.NewPieceGroupRepository()
			statusRepo := repositories.NewPieceStatusRepository()
			withTx := services.NewTxFunc()

			reconciliation := services.NewReconciliationService(projectRepo, repositories.NewClientRepository(), withTx, logger)
			writer := services.NewPieceWriterService(projectRepo, groupRepo,
				services.NewStatusSyncService(statusRepo, logger), withTx, logger)
			groups := services.NewPieceGroupService(projectRepo, groupRepo, statusRepo, withTx, logger)
			importer := services.NewImportService(normalizer, reconciliation, writer, groups, projectRepo, withTx, logger)

			result, err := importer.Commit(ctx, owner, files, writePolicy, confirm)
			if errors.Is(err, services.ErrConfirmationRequired) {
				return fmt.Errorf("%w; re-run with --confirm to create it", err)
			}
			if err != nil && !errors.Is(err, apperrors.ErrPartialWrite) {
				return err
			}
			if outErr := writeJSON(result); outErr != nil {
				return outErr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "Owning account UUID (required)")
	cmd.Flags().StringVar(&policy, "policy", "", "replace_all or append_only (default from config)")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Create the project when the export names an unknown one")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
