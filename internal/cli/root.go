// Package cli implements the bwfs command-line interface.
package cli

import (
	"cmp"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeffas/bwfs/internal/ctl"
	"github.com/jeffas/bwfs/internal/vault"
)

var (
	// version and buildDate are set via ldflags.
	version   string
	buildDate string

	// socketPath is the --socket persistent flag.
	socketPath string
)

var rootCmd = &cobra.Command{
	Use:   "bwfs",
	Short: "Mount a Bitwarden vault as a read-only filesystem",
	Long: `bwfs lets you browse your Bitwarden vault with ordinary file tools.

Run the daemon:
  bwfs serve ~/secrets     Mount the vault at ~/secrets

Control it:
  bwfs unlock              Unlock the vault and populate the mount
  bwfs status              Show vault and backend state
  bwfs refresh             Re-fetch the vault contents
  bwfs lock                Clear all secrets from memory`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command, mapping errors to the documented exit
// codes: 1 generic/backend failure, 2 invalid credential, 3 operation
// already in progress.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, ctl.ErrInvalidCredential):
		return 2
	case errors.Is(err, ctl.ErrAlreadyInProgress), errors.Is(err, vault.ErrAlreadyInProgress):
		return 3
	default:
		return 1
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (built %s)", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))

	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "",
		"control socket path (default: $XDG_RUNTIME_DIR/bwfs.sock)")

	rootCmd.AddCommand(
		serveCmd,
		statusCmd,
		unlockCmd,
		lockCmd,
		refreshCmd,
	)
}
