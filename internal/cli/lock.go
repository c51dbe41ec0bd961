package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeffas/bwfs/internal/ctl"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Clear all secrets from memory and lock the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ctl.New(socketPath).Lock(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Vault locked")
		return nil
	},
}
