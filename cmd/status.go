// File: cmd/status.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/selenium-suite/internal/observability"
	"github.com/xkilldash9x/selenium-suite/internal/webdriver"
)

func newStatusCmd() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Queries the readiness of the remote end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			driver, err := webdriver.NewDriver(cfg.Remote(), observability.GetLogger())
			if err != nil {
				return err
			}
			st, err := driver.Status(ctx)
			if err != nil {
				return fmt.Errorf("remote end %s unreachable: %w", cfg.Remote().ServerURL, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "server:  %s\n", cfg.Remote().ServerURL)
			fmt.Fprintf(out, "ready:   %t\n", st.Ready)
			if st.Message != "" {
				fmt.Fprintf(out, "message: %s\n", st.Message)
			}
			if st.Build.Version != "" {
				fmt.Fprintf(out, "build:   %s\n", st.Build.Version)
			}
			if st.OS.Name != "" {
				fmt.Fprintf(out, "os:      %s/%s\n", st.OS.Name, st.OS.Arch)
			}
			if !st.Ready {
				return fmt.Errorf("remote end is not ready")
			}
			return nil
		},
	}
	statusCmd.Flags().String("server", "", "WebDriver remote end URL (overrides remote.server_url)")
	return statusCmd
}
