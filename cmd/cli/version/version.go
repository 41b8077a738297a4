package version

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qubi-project/qubi/pkg/version"
)

func NewCmd() *cobra.Command {
	var outputJSON bool

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if outputJSON {
				encoded, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(encoded))
				return nil
			}
			cmd.Println(fmt.Sprintf("qubi %s (%s) built %s %s/%s",
				info.GitVersion, info.GitCommit, info.BuildDate, info.GOOS, info.GOARCH))
			return nil
		},
	}
	versionCmd.Flags().BoolVar(&outputJSON, "json", false, "Output version information as JSON")

	return versionCmd
}
