package cmd

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"
)

// set with -ldflags "-X github.com/fzft/go-frame-relay/cmd.gitSHA1=..."
var (
	relayVersion = "0.1.0"
	gitSHA1      = "unknown"
	gitDirty     = "unknown"
	buildID      = "unknown"
	buildDate    = "unknown"
)

// Version renders the release with the git commit and working tree status when known.
func Version(gitSHA1, gitDirty string) string {
	version := relayVersion
	if sha1Int, err := strconv.ParseUint(gitSHA1, 16, 64); err == nil && sha1Int != 0 {
		version = fmt.Sprintf("%s (git:%s", version, gitSHA1)
		if dirtyInt, err := strconv.ParseInt(gitDirty, 10, 64); err == nil && dirtyInt != 0 {
			version = fmt.Sprintf("%s-dirty", version)
		}
		version = fmt.Sprintf("%s)", version)
	}
	return version
}

func BuildIDRaw() string {
	return buildID + buildDate + gitSHA1 + gitDirty
}

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, relayVersion)
				return
			}
			fmt.Fprintf(out, "relay %s\n", Version(gitSHA1, gitDirty))
			fmt.Fprintf(out, "  Build:      %s\n", BuildIDRaw())
			fmt.Fprintf(out, "  Built:      %s\n", buildDate)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")
	return cmd
}
