/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/profiles-api/apiserver/config"
	"github.com/profiles-api/apiserver/internal/logging"
	"github.com/profiles-api/apiserver/internal/server"
	"github.com/profiles-api/apiserver/internal/services"
	"github.com/profiles-api/apiserver/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var superuserFlags struct {
	email    string
	name     string
	password string
}

// createSuperuserCmd represents the createsuperuser command
var createSuperuserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Create an account with staff and superuser rights",
	Long: `Create an account with staff and superuser rights. When --password is
omitted the password is read from the terminal. Without a terminal the
account is created with an unusable password.

	profiles createsuperuser --email admin@example.com --name Admin
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger, err := logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		password := superuserFlags.password
		if password == "" {
			password, err = promptPassword(os.Stdin, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
		}

		account, err := createSuperuser(cmd.Context(), cfg, logger, superuserFlags.email, superuserFlags.name, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s created (id %d)\n", account.Email, account.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createSuperuserCmd)
	createSuperuserCmd.Flags().StringVar(&superuserFlags.email, "email", "", "email address used to log in")
	createSuperuserCmd.Flags().StringVar(&superuserFlags.name, "name", "", "display name")
	createSuperuserCmd.Flags().StringVar(&superuserFlags.password, "password", "", "password (prompted when omitted)")
	_ = createSuperuserCmd.MarkFlagRequired("email")
	_ = createSuperuserCmd.MarkFlagRequired("name")
}

func createSuperuser(ctx context.Context, cfg config.Config, logger *zap.Logger, email, name, password string) (types.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Account{}, errors.New("name is required")
	}

	deps, err := server.OpenDependencies(ctx, cfg)
	if err != nil {
		return types.Account{}, err
	}
	defer deps.Close()

	factory := services.NewAccountFactory(deps.Accounts, services.WithBcryptCost(cfg.BcryptCost))
	accounts := services.NewAccountService(deps.Accounts, factory, deps.Events, logger.Named("accounts"))

	account, err := accounts.CreateSuperuser(ctx, email, name, password)
	if err != nil {
		return types.Account{}, fmt.Errorf("create superuser: %w", err)
	}
	return account, nil
}

// promptPassword reads the password twice without echo. It returns an empty
// password when in is not a terminal.
func promptPassword(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(out, "Password (again): ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
