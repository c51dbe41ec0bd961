package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeffas/bwfs/internal/ctl"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-fetch the vault contents into the mount",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ctl.New(socketPath).Refresh(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Vault refreshed")
		return nil
	},
}
