package main

import (
	"fmt"
	"time"

	"kart-checkout/internal/app"
	"kart-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func paymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Reconcile payment transactions",
	}
	cmd.AddCommand(pollCmd(), confirmCmd(), queryCmd())
	return cmd
}

func pollCmd() *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Query the gateway for every stale pending transaction",
		Long: `Query the gateway for pending transactions older than --older-than
and apply conclusive answers. Intended to run from cron for gateways
whose callbacks are unreliable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				summary, err := a.Payments.PollPending(cmd.Context(), olderThan, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 5*time.Minute, "minimum age of a pending transaction")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum transactions per run")
	return cmd
}

func confirmCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "confirm [transaction-id] [completed|failed]",
		Short: "Apply an operator outcome to a pending transaction",
		Example: `  kartctl payments confirm 6f1c... completed --note "seen on statement"
  kartctl payments confirm 6f1c... failed --note "customer abandoned"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transaction id: %w", err)
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Payments.ApplyManualConfirmation(cmd.Context(), id, &model.ManualConfirmationRequest{
					Status: args[1],
					Note:   note,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "operator note stored with the outcome")
	return cmd
}

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query [correlation-id]",
		Short: "Poll the gateway for one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Payments.QueryStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}
