package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/leo-rullani/backend-video-flix/internal/auth"
	"github.com/leo-rullani/backend-video-flix/internal/models"
	"github.com/leo-rullani/backend-video-flix/internal/repositories"
)

func newCreateAdminCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an active staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, svc *services) error {
				return createAdmin(ctx, cmd.OutOrStdout(), svc.users, email, password)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address of the account")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

type userCreator interface {
	Create(ctx context.Context, user models.User) (models.User, error)
}

func createAdmin(ctx context.Context, out io.Writer, users userCreator, email, password string) error {
	normalized, err := auth.NormalizeEmail(email)
	if err != nil {
		return fmt.Errorf("invalid email %q", email)
	}
	if password == "" {
		return errors.New("password must not be empty")
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	user, err := users.Create(ctx, models.User{
		Email:    normalized,
		Password: hashed,
		IsActive: true,
		IsStaff:  true,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return fmt.Errorf("an account for %s already exists", normalized)
		}
		return fmt.Errorf("create admin: %w", err)
	}

	fmt.Fprintf(out, "created staff account %s (id %d)\n", user.Email, user.ID)
	return nil
}
