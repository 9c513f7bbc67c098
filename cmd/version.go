package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set via -ldflags "-X github.com/kamusis/catmatch/cmd.version=...".
var (
	version   = "dev"
	commit    = ""
	buildDate = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show catmatch version and build information",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		v, c, d := buildInfo()
		fmt.Fprintf(stdout, "Version:    %s\n", v)
		fmt.Fprintf(stdout, "Commit:     %s\n", orNA(c))
		fmt.Fprintf(stdout, "Build Date: %s\n", orNA(d))
		fmt.Fprintf(stdout, "Go Version: %s\n", runtime.Version())
		fmt.Fprintf(stdout, "OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// buildInfo falls back to the module's embedded VCS stamps for `go install` builds.
func buildInfo() (v, c, d string) {
	v, c, d = version, commit, buildDate
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if v == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		v = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && c == "":
			c = s.Value
		case s.Key == "vcs.time" && d == "":
			d = s.Value
		}
	}
	return
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
