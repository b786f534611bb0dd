package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// newSecretCmd creates `briefclaw secret` for OS keyring management.
func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage credentials in the OS keyring",
		Long: `Store, inspect and remove credentials in the OS keyring. Stored secrets
fill any credential the config file and environment leave empty.

Names: ` + strings.Join(config.SecretNames(), ", "),
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <name>",
			Short: "Store a secret (prompted without echo)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				name := args[0]
				if !config.IsSecretName(name) {
					return fmt.Errorf("unknown secret %q (valid: %s)", name, strings.Join(config.SecretNames(), ", "))
				}
				value, err := readSecret(fmt.Sprintf("Value for %s: ", name))
				if err != nil {
					return err
				}
				if value == "" {
					return fmt.Errorf("empty value, nothing stored")
				}
				if err := config.StoreSecret(name, value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in the OS keyring.\n", name)
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <name>",
			Short: "Show whether a secret is stored (masked)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if !config.IsSecretName(args[0]) {
					return fmt.Errorf("unknown secret %q", args[0])
				}
				value := config.GetSecret(args[0])
				if value == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: not set\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], mask(value))
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Remove a secret",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := config.DeleteSecret(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

// readSecret reads a line without echo from a terminal, or plainly from
// piped stdin.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// mask shows the first and last four characters of long values.
func mask(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
