package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeffas/bwfs/internal/ctl"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Unlock the vault and populate the mount",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword()
		if err != nil {
			return err
		}
		if err := ctl.New(socketPath).Unlock(cmd.Context(), password); err != nil {
			return err
		}
		fmt.Println("Vault unlocked")
		return nil
	},
}

// readPassword takes the master password from BWFS_PASSWORD if set,
// otherwise prompts on the terminal without echo.
func readPassword() (string, error) {
	if p := os.Getenv("BWFS_PASSWORD"); p != "" {
		return p, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("stdin is not a terminal; set BWFS_PASSWORD instead")
	}
	fmt.Fprint(os.Stderr, "Master password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(raw), nil
}
