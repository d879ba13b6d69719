package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazadus/go-tunes/internal/auth"
)

// credentials данные для входа из флагов
type credentials struct {
	email    string
	password string
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.email, "email", "", "account email")
	cmd.Flags().StringVar(&c.password, "password", "", "account password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("email")
}

// resolvePassword читает пароль из stdin, если он не передан флагом
func (c *credentials) resolvePassword(in io.Reader) error {
	if c.password != "" {
		return nil
	}
	fmt.Print("Пароль: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("ошибка чтения пароля: %w", err)
	}
	fmt.Println()
	c.password = strings.TrimRight(line, "\r\n")
	return nil
}

// createSignUpCommand создает команду signup
func (app *Application) createSignUpCommand(ctx context.Context) *cobra.Command {
	var creds credentials
	var username string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := creds.resolvePassword(cmd.InOrStdin()); err != nil {
				return err
			}
			session, err := app.Auth.SignUp(ctx, creds.email, creds.password, username)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Учетная запись создана: %s\n", session.Email)
			return app.Library.Refresh(ctx)
		},
	}
	creds.bind(cmd)
	cmd.Flags().StringVar(&username, "username", "", "public name used as artist for uploads")
	return cmd
}

// createSignInCommand создает команду signin
func (app *Application) createSignInCommand(ctx context.Context) *cobra.Command {
	var creds credentials

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in to an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := creds.resolvePassword(cmd.InOrStdin()); err != nil {
				return err
			}
			session, err := app.Auth.SignIn(ctx, creds.email, creds.password)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Вход выполнен: %s (до %s)\n", session.Email, session.ExpiresAt.Format("02.01.2006"))
			return app.Library.Refresh(ctx)
		},
	}
	creds.bind(cmd)
	return cmd
}

// createSignOutCommand создает команду signout
func (app *Application) createSignOutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out on this device",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := app.Auth.SignOut(); err != nil {
				return err
			}
			fmt.Println("👋 Выход выполнен")
			return nil
		},
	}
}

// createWhoAmICommand создает команду whoami
func (app *Application) createWhoAmICommand(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in account",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			user, err := app.Auth.CurrentUser(ctx)
			if errors.Is(err, auth.ErrNotSignedIn) {
				fmt.Println("👤 Вход не выполнен")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Printf("👤 %s\n", user.Email)
			profile, err := app.Auth.Profile(ctx)
			if err != nil {
				return err
			}
			if profile.Username != "" {
				fmt.Printf("   Имя пользователя: %s\n", profile.Username)
			}
			if profile.DisplayName != "" {
				fmt.Printf("   Отображаемое имя: %s\n", profile.DisplayName)
			}
			return nil
		},
	}
}

// createProfileCommand создает команду profile
func (app *Application) createProfileCommand(ctx context.Context) *cobra.Command {
	var username, displayName string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the profile of the signed in account",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := app.Auth.UpdateProfile(ctx, username, displayName); err != nil {
				return err
			}
			fmt.Println("✅ Профиль обновлен")
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "public name used as artist for uploads")
	cmd.Flags().StringVar(&displayName, "display-name", "", "display name")
	return cmd
}
