package main

import (
	"context"
	"fmt"
	"time"

	"inputbid-service/internal/adapters/db"
	"inputbid-service/internal/config"
	"inputbid-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type accessOptions struct {
	retailer string
	business string
}

// newAccessCommand manages the retailer to business inputs grants that
// gate request visibility and bidding.
func newAccessCommand(cfg *config.Config) *cobra.Command {
	opts := &accessOptions{}

	cmd := &cobra.Command{
		Use:   "access",
		Short: "Manage retailer inputs access",
	}
	cmd.PersistentFlags().StringVar(&opts.retailer, "retailer", "", "retailer id")
	cmd.PersistentFlags().StringVar(&opts.business, "business", "", "business id")
	cmd.MarkPersistentFlagRequired("retailer")
	cmd.MarkPersistentFlagRequired("business")

	cmd.AddCommand(&cobra.Command{
		Use:   "grant",
		Short: "Approve a retailer for a business",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccess(cmd.Context(), cfg, opts, func(ctx context.Context, repo *db.AccessRepository, retailerID, businessID uuid.UUID) error {
				if err := repo.Grant(ctx, retailerID, businessID, shared.CapabilityInputs, time.Now().UTC()); err != nil {
					return err
				}
				log.Info().Str("retailer_id", retailerID.String()).Str("business_id", businessID.String()).Msg("Access granted")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke",
		Short: "Revoke a retailer's access to a business",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccess(cmd.Context(), cfg, opts, func(ctx context.Context, repo *db.AccessRepository, retailerID, businessID uuid.UUID) error {
				if err := repo.Revoke(ctx, retailerID, businessID, shared.CapabilityInputs, time.Now().UTC()); err != nil {
					return err
				}
				log.Info().Str("retailer_id", retailerID.String()).Str("business_id", businessID.String()).Msg("Access revoked")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Report whether a retailer has access to a business",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccess(cmd.Context(), cfg, opts, func(ctx context.Context, repo *db.AccessRepository, retailerID, businessID uuid.UUID) error {
				ok, err := repo.HasAccess(ctx, retailerID, businessID, shared.CapabilityInputs)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ok)
				return nil
			})
		},
	})

	return cmd
}

func withAccess(ctx context.Context, cfg *config.Config, opts *accessOptions, fn func(context.Context, *db.AccessRepository, uuid.UUID, uuid.UUID) error) error {
	retailerID, err := uuid.Parse(opts.retailer)
	if err != nil {
		return fmt.Errorf("invalid retailer id: %w", err)
	}
	businessID, err := uuid.Parse(opts.business)
	if err != nil {
		return fmt.Errorf("invalid business id: %w", err)
	}

	conn, err := db.NewConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(ctx, db.NewRepositoryFactory(conn).GetAccessRepository(), retailerID, businessID)
}
