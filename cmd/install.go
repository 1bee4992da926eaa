package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/encore/internal/daemon"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the encore daemon as a launchd agent",
	Long: `Install the encore daemon as a launchd agent that runs automatically on login.

This command will:
  - Generate a launchd plist file for the encore daemon
  - Install it to ~/Library/LaunchAgents/
  - Load the agent with launchctl
  - Start the daemon automatically

The daemon will run in the background, run scheduled searches and notify
users about new concerts.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Resolve symlinks to get the actual binary path
	binaryPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	binaryPath, err = filepath.EvalSymlinks(binaryPath)
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	logPath, err := daemon.GetDefaultLogPath()
	if err != nil {
		return fmt.Errorf("failed to get log path: %w", err)
	}
	if err := os.MkdirAll(logPath, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	plistContent, err := daemon.GeneratePlist(daemon.PlistConfig{
		BinaryPath:       binaryPath,
		LogPath:          logPath,
		WorkingDirectory: home,
	})
	if err != nil {
		return fmt.Errorf("failed to generate plist: %w", err)
	}

	plistPath, err := daemon.GetPlistPath()
	if err != nil {
		return fmt.Errorf("failed to get plist path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(plistPath), 0755); err != nil {
		return fmt.Errorf("failed to create LaunchAgents directory: %w", err)
	}

	if _, err := os.Stat(plistPath); err == nil {
		fmt.Fprintln(out, "Daemon is already installed. Reinstalling...")
		unloadDaemon(cmd)
	}

	if err := os.WriteFile(plistPath, []byte(plistContent), 0644); err != nil {
		return fmt.Errorf("failed to write plist file: %w", err)
	}
	fmt.Fprintf(out, "✓ Installed plist to %s\n", plistPath)

	if err := loadDaemon(plistPath); err != nil {
		return fmt.Errorf("failed to load daemon: %w", err)
	}

	fmt.Fprintln(out, "✓ Daemon loaded and started successfully")
	fmt.Fprintf(out, "✓ Logs will be written to %s\n", logPath)
	fmt.Fprintln(out, "\nYou can check the daemon with:")
	fmt.Fprintln(out, "  encore status")
	fmt.Fprintln(out, "\nTo uninstall, run:")
	fmt.Fprintln(out, "  encore uninstall")
	return nil
}

// launchdDomain is the launchctl domain of the current user's GUI session.
func launchdDomain() string {
	return fmt.Sprintf("gui/%d", os.Getuid())
}

// loadDaemon loads the agent with launchctl bootstrap.
func loadDaemon(plistPath string) error {
	output, err := exec.Command("launchctl", "bootstrap", launchdDomain(), plistPath).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(output)); msg != "" {
			return fmt.Errorf("launchctl bootstrap failed: %s", msg)
		}
		return fmt.Errorf("failed to run launchctl bootstrap: %w", err)
	}
	return nil
}

// unloadDaemon unloads the agent with launchctl bootout. An agent that is
// not loaded only produces a warning.
func unloadDaemon(cmd *cobra.Command) {
	service := launchdDomain() + "/" + daemon.LaunchdLabel
	output, err := exec.Command("launchctl", "bootout", service).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(output)); msg != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Warning: %s\n", msg)
		}
	}
}
