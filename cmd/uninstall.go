package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/encore/internal/daemon"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the encore daemon from launchd",
	Long: `Uninstall the encore daemon from launchd and stop it from running automatically.

This command will:
  - Stop the running daemon (if any)
  - Unload the daemon from launchd
  - Remove the plist file from ~/Library/LaunchAgents/

The database, cache and state file are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		plistPath, err := daemon.GetPlistPath()
		if err != nil {
			return fmt.Errorf("failed to get plist path: %w", err)
		}
		if _, err := os.Stat(plistPath); os.IsNotExist(err) {
			fmt.Fprintln(out, "Daemon is not installed (plist not found)")
			return nil
		}

		fmt.Fprintln(out, "Stopping daemon...")
		unloadDaemon(cmd)

		if err := os.Remove(plistPath); err != nil {
			return fmt.Errorf("failed to remove plist file: %w", err)
		}

		fmt.Fprintf(out, "✓ Removed plist from %s\n", plistPath)
		fmt.Fprintln(out, "\nThe encore daemon has been uninstalled.")
		fmt.Fprintln(out, "\nTo reinstall, run:")
		fmt.Fprintln(out, "  encore install")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
