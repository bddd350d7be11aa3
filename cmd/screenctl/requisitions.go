package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"candidate-screening/internal/domain/model"
	pg "candidate-screening/internal/infra/db/postgres"
)

var reqCmd = &cobra.Command{
	Use:     "requisitions",
	Aliases: []string{"reqs"},
	Short:   "Manage the requisitions that sync watches",
}

var (
	reqTitle    string
	reqAutoSend bool
	reqMinScore int
	reqInactive bool
)

var reqAddCmd = &cobra.Command{
	Use:   "add <external-id>",
	Short: "Register a TMS requisition for periodic sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ext := strings.TrimSpace(args[0])
		if ext == "" {
			return fmt.Errorf("external id must not be blank")
		}
		if reqMinScore < 0 || reqMinScore > 100 {
			return fmt.Errorf("--min-score must be between 0 and 100")
		}
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		r := &model.Requisition{
			ID:                uuid.NewString(),
			ExternalID:        ext,
			Title:             reqTitle,
			Active:            !reqInactive,
			AutoSendInterview: reqAutoSend,
			AutoSendMinScore:  reqMinScore,
		}
		if err := pg.NewRequisitionRepo(e.pool).Save(cmd.Context(), nil, r); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "requisition %s registered as %s\n", ext, r.ID)
		return nil
	},
}

var reqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active requisitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		reqs, err := pg.NewRequisitionRepo(e.pool).ListActive(cmd.Context(), nil)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-36s %-20s %-10s %s\n", "ID", "EXTERNAL", "AUTO-SEND", "LAST SYNC")
		fmt.Fprintln(w, strings.Repeat("─", 90))
		for _, r := range reqs {
			auto := "off"
			if r.AutoSendInterview {
				auto = fmt.Sprintf(">=%d", r.AutoSendMinScore)
			}
			last := "never"
			if r.LastSyncedAt != nil {
				last = r.LastSyncedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%-36s %-20s %-10s %s\n", r.ID, r.ExternalID, auto, last)
		}
		return nil
	},
}

func init() {
	reqAddCmd.Flags().StringVar(&reqTitle, "title", "", "human readable title")
	reqAddCmd.Flags().BoolVar(&reqAutoSend, "auto-send", false, "send interview invitations automatically after analysis")
	reqAddCmd.Flags().IntVar(&reqMinScore, "min-score", 0, "minimum analysis score for automatic invitations")
	reqAddCmd.Flags().BoolVar(&reqInactive, "inactive", false, "register without enabling sync")

	reqCmd.AddCommand(reqAddCmd, reqListCmd)
	rootCmd.AddCommand(reqCmd)
}
