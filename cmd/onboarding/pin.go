package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insurewright/onboarding/internal/auth"
)

var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Manage the portal PIN",
}

var pinHashCmd = &cobra.Command{
	Use:   "hash [pin]",
	Short: "Print a bcrypt hash of a PIN for use as AUTH_PIN",
	Long: `Print a bcrypt hash of a PIN. Set AUTH_PIN to the hash so the plain PIN
never appears in configuration. Without an argument the PIN is read from the
first line of stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPinHash,
}

func init() {
	pinCmd.AddCommand(pinHashCmd)
}

func runPinHash(cmd *cobra.Command, args []string) error {
	var pin string
	if len(args) == 1 {
		pin = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read PIN from stdin: %w", err)
		}
		pin = strings.TrimRight(line, "\r\n")
	}
	if pin == "" {
		return errors.New("PIN must not be empty")
	}

	hash, err := auth.HashPIN(pin)
	if err != nil {
		return fmt.Errorf("hash PIN: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]string{"hash": hash})
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
