package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeffas/bwfs/internal/ctl"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault and backend state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := ctl.New(socketPath).Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("vault:   %s\n", status.State)
		fmt.Printf("backend: %s\n", status.Backend)
		fmt.Printf("items:   %d\n", status.Items)
		if len(status.Failed) > 0 {
			fmt.Printf("failed:  %s\n", strings.Join(status.Failed, ", "))
		}
		return nil
	},
}
