package main

import (
	"fmt"
	"strconv"
	"strings"

	"editorial-workflow-api/models"
	"editorial-workflow-api/services"

	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the workflow tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.ensureDB()
			if err != nil {
				return err
			}
			tables := models.All()
			if err := db.WithContext(cmd.Context()).AutoMigrate(tables...); err != nil {
				return fmt.Errorf("auto-migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables\n", len(tables))
			return nil
		},
	}
}

func newFeesCommand() *cobra.Command {
	var pages []int
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Show publication charges for page counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(pages) == 0 {
				return fmt.Errorf("at least one --pages value is required")
			}
			rows := make([][]string, 0, len(pages))
			for _, p := range pages {
				charges, err := services.ComputeCharges(p)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					strconv.Itoa(p),
					strconv.FormatInt(charges.BaseAmount, 10),
					strconv.Itoa(charges.ExtraPages),
					strconv.FormatInt(charges.TotalAmount, 10),
				})
			}
			headers := []string{"Pages", "Base", "Extra pages", "Total"}
			aligns := []columnAlignment{alignRight, alignRight, alignRight, alignRight}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&pages, "pages", nil, "Page count (repeatable)")
	return cmd
}

func newStatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "states",
		Short: "List manuscript states with their status projections",
		RunE: func(cmd *cobra.Command, args []string) error {
			states := models.AllStates()
			rows := make([][]string, 0, len(states))
			for _, s := range states {
				rows = append(rows, []string{
					string(s),
					string(s.Status()),
					string(s.WorkflowStatus()),
					string(s.LegacyWorkflowStatus()),
				})
			}
			headers := []string{"State", "Status", "Workflow", "Legacy workflow"}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, nil))
			return nil
		},
	}
}

func newAssignmentsCommand(ctx *commandContext) *cobra.Command {
	var reviewerID string
	var status string
	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "List a reviewer's assignments, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(reviewerID) == "" {
				return fmt.Errorf("--reviewer is required")
			}
			wf, err := ctx.ensureWorkflow()
			if err != nil {
				return err
			}
			var filter *models.AssignmentStatus
			if status != "" {
				st := models.AssignmentStatus(strings.ToLower(status))
				filter = &st
			}
			items, err := wf.Assignments.ListForReviewer(cmd.Context(), reviewerID, filter)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No assignments")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, a := range items {
				rows = append(rows, []string{
					a.ID,
					a.ManuscriptID,
					strconv.Itoa(a.Round),
					string(a.Status),
					a.DueDate.Format("2006-01-02"),
				})
			}
			headers := []string{"ID", "Manuscript", "Round", "Status", "Due"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}
	cmd.Flags().StringVar(&reviewerID, "reviewer", "", "Reviewer user id")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, accepted, declined, completed)")
	return cmd
}

func newReplayPaymentCommand(ctx *commandContext) *cobra.Command {
	var in services.VerifyPaymentInput
	cmd := &cobra.Command{
		Use:   "replay-payment",
		Short: "Re-apply a signed payment gateway callback",
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := ctx.ensureWorkflow()
			if err != nil {
				return err
			}
			res, err := wf.Payments.VerifyPayment(cmd.Context(), in)
			if err != nil {
				return err
			}
			note := ""
			if res.Duplicate {
				note = " (already recorded)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Payment %s is %s; manuscript %s is %s%s\n",
				res.Payment.PaymentID, res.Outcome, res.Manuscript.ID, res.Manuscript.State, note)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.ManuscriptID, "manuscript", "", "Manuscript id")
	cmd.Flags().StringVar(&in.PaymentID, "payment", "", "Gateway payment id")
	cmd.Flags().Int64Var(&in.Amount, "amount", 0, "Amount in minor units")
	cmd.Flags().StringVar(&in.Status, "status", "", "Gateway status")
	cmd.Flags().StringVar(&in.Signature, "signature", "", "Hex HMAC-SHA256 signature")
	return cmd
}
