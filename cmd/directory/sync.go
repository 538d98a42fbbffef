package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full sync and print the outcome",
	Long: `Fetches every merchant page and the recommendation list from the remote
backend and refreshes the local snapshot. Without a remote, or when the remote
cannot be reached, the local snapshot is loaded instead and the command exits
with an error.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		start := time.Now()
		ms, st := a.Directory.LoadAll(ctx)
		took := time.Since(start).Round(time.Millisecond)

		bold := color.New(color.Bold)
		ok := color.New(color.FgGreen).SprintFunc()
		warn := color.New(color.FgYellow).SprintFunc()
		bad := color.New(color.FgRed).SprintFunc()

		bold.Println("=== Merchant directory sync ===")
		fmt.Printf("Remote:          %s\n", a.RemoteKind)
		fmt.Printf("Write mode:      %s\n", st.Mode)
		if st.Online {
			fmt.Printf("Status:          %s\n", ok("online"))
		} else {
			fmt.Printf("Status:          %s\n", warn("offline (local snapshot)"))
		}
		fmt.Printf("Merchants:       %d\n", len(ms))
		fmt.Printf("Recommendations: %d\n", len(a.Directory.Recommendations()))
		fmt.Printf("Took:            %v\n", took)
		if st.LastSyncedAt != nil {
			fmt.Printf("Last synced:     %s\n", st.LastSyncedAt.Format(time.RFC3339))
		}

		switch {
		case st.Error != "":
			fmt.Printf("Error:           %s\n", bad(st.Error))
			return fmt.Errorf("sync failed: %s", st.Error)
		case !a.Directory.HasRemote():
			return fmt.Errorf("no remote backend configured (set REMOTE_URL and REMOTE_API_KEY, or REMOTE_DSN)")
		}
		return nil
	},
}
