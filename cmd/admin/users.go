package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mygeslike/api/internal/domain"
)

func newUsersCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect and maintain user accounts",
	}

	var role string
	list := &cobra.Command{
		Use:   "list",
		Short: "List users, optionally filtered by role",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			filter, err := parseRole(role)
			if err != nil {
				return err
			}
			users, err := cc.users(c.Context())
			if err != nil {
				return err
			}
			list, err := users.ListUsers(c.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}
			fmt.Fprintln(c.OutOrStdout(), renderUsers(list))
			return nil
		},
	}
	list.Flags().StringVar(&role, "role", "", "Only list STUDENT or TEACHER accounts")
	cmd.AddCommand(list)

	var email string
	reset := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for an account; the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			password, err := cc.promptNewPassword(c.ErrOrStderr())
			if err != nil {
				return err
			}
			users, err := cc.users(c.Context())
			if err != nil {
				return err
			}
			if err := users.ResetPassword(c.Context(), email, password); err != nil {
				return fmt.Errorf("failed to reset password: %w", err)
			}
			fmt.Fprintf(c.OutOrStdout(), "password updated for %s\n", domain.NormalizeEmail(email))
			return nil
		},
	}
	reset.Flags().StringVar(&email, "email", "", "Account email")
	_ = reset.MarkFlagRequired("email")
	cmd.AddCommand(reset)

	return cmd
}

func parseRole(s string) (*domain.Role, error) {
	if s == "" {
		return nil, nil
	}
	role := domain.Role(strings.ToUpper(strings.TrimSpace(s)))
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q, expected STUDENT or TEACHER", s)
	}
	return &role, nil
}

func renderUsers(users []domain.User) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Email", "Name", "Role", "Profile ID", "Created"})
	for _, u := range users {
		tw.AppendRow(table.Row{
			u.Email,
			u.FullName(),
			string(u.Role),
			u.ProfileID.String(),
			u.CreatedAt.UTC().Format(time.DateOnly),
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "Total", len(users)})
	return tw.Render()
}
