package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/nexi-lab/nexus-sub005/internal/update"
	"github.com/nexi-lab/nexus-sub005/internal/version"
)

var versionCheckUpdate bool

func init() {
	if version.Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.Main.Version != "" && info.Main.Version != "(devel)" {
				version.Version = info.Main.Version
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					if len(setting.Value) >= 7 {
						version.Commit = setting.Value[:7]
					} else {
						version.Commit = setting.Value
					}
				case "vcs.time":
					version.Date = setting.Value
				}
			}
		}
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Info())

		if versionCheckUpdate {
			info, err := update.CheckWithCache(cmd.Context())
			if err != nil {
				fmt.Printf("update check failed: %v\n", err)
				return
			}
			if info.UpdateAvailable {
				fmt.Printf("a new version is available: %s (you have %s)\n", info.LatestVersion, info.CurrentVersion)
			} else {
				fmt.Println("up to date")
			}
		}
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheckUpdate, "check-update", false, "check GitHub for a newer release")
}
