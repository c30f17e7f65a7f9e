package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrz1836/ethdeploy/internal/version"
)

// devVersionString is reported when no version was injected at build time.
const devVersionString = "dev"

// BuildInfo holds values injected with -ldflags at build time.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

//nolint:gochecknoglobals // Set once from main before Execute
var buildInfo BuildInfo

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	versionCheck      bool
	releaseAPIBaseURL = version.DefaultBaseURL
)

// SetBuildInfo records the build metadata reported by the version command.
func SetBuildInfo(info BuildInfo) {
	buildInfo = info
	rootCmd.Version = formatVersion(info)
}

// currentVersion returns the injected version or "dev".
func currentVersion() string {
	if buildInfo.Version == "" {
		return devVersionString
	}
	return buildInfo.Version
}

func formatVersion(info BuildInfo) string {
	v, commit, date := info.Version, info.Commit, info.Date
	if v == "" {
		v = devVersionString
	}
	if commit == "" {
		commit = "unknown"
	}
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", v, commit, date)
}

// versionCmd prints build information.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Show the ethdeploy version, commit and build date.

With --check the latest GitHub release is fetched and compared.

Examples:
  ethdeploy version
  ethdeploy version --check -o json`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
}

// versionResult is the JSON shape of the version command.
type versionResult struct {
	BuildInfo

	Latest          string `json:"latest,omitempty"`
	ReleaseURL      string `json:"release_url,omitempty"`
	UpdateAvailable *bool  `json:"update_available,omitempty"`
}

func runVersion(cmd *cobra.Command, _ []string) error {
	result := versionResult{BuildInfo: buildInfo}
	result.Version = currentVersion()

	if versionCheck {
		ctx, cancel := contextWithTimeout(cmd, version.DefaultTimeout)
		defer cancel()

		info, err := version.NewChecker(result.Version, version.WithBaseURL(releaseAPIBaseURL)).
			Check(ctx, result.Version)
		if err != nil {
			logger.Error("release check failed: %v", err)
			return err
		}
		result.Latest = info.Latest
		result.ReleaseURL = info.URL
		result.UpdateAvailable = &info.IsNewer
	}

	if formatter.IsJSON() {
		return formatter.Print(result)
	}

	w := formatter.Writer()
	outln(w, "ethdeploy "+formatVersion(buildInfo))
	if result.UpdateAvailable == nil {
		return nil
	}
	if *result.UpdateAvailable {
		out(w, "A newer release is available: %s\n", result.Latest)
		if result.ReleaseURL != "" {
			outln(w, result.ReleaseURL)
		}
		return nil
	}
	outln(w, "You are running the latest release.")
	return nil
}
