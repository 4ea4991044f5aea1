package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var (
	errEmptyPassword    = errors.New("password cannot be empty")
	errPasswordMismatch = errors.New("passwords do not match")
)

func newTeacherCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teacher",
		Short: "Manage teacher accounts",
	}

	var email, firstName, lastName string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a teacher account; the password is prompted",
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
			user, err := users.CreateTeacher(c.Context(), email, firstName, lastName, password)
			if err != nil {
				return fmt.Errorf("failed to create teacher: %w", err)
			}
			fmt.Fprintf(c.OutOrStdout(), "created teacher %s (user %s, teacher profile %s)\n",
				user.Email, user.ID, user.ProfileID)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "Teacher email")
	create.Flags().StringVar(&firstName, "first-name", "", "Teacher first name")
	create.Flags().StringVar(&lastName, "last-name", "", "Teacher last name")
	for _, name := range []string{"email", "first-name", "last-name"} {
		_ = create.MarkFlagRequired(name)
	}
	cmd.AddCommand(create)

	return cmd
}

// promptNewPassword reads a password twice without echo.
func (c *commandContext) promptNewPassword(prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Password: ")
	first, err := c.readPassword(c.stdinFd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(first) == 0 {
		return "", errEmptyPassword
	}

	fmt.Fprint(prompt, "Confirm password: ")
	second, err := c.readPassword(c.stdinFd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errPasswordMismatch
	}
	return string(first), nil
}
