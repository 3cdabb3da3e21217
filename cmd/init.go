package cmd

import (
	"fmt"

	"github.com/nikogura/doc-reformatter/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter configuration file",
	Long: `Create a starter configuration file at $HOME/.doc-reformatter/config.json
(or the path given with --config). Edit it to set api_key before converting.

Every setting can also be given in the environment, e.g. DOCREFORMAT_MODEL.
API_KEY and AI_API_URL are honored as well.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) (err error) {
	path := getConfigFile()
	if path == "" {
		path, err = config.DefaultPath()
		if err != nil {
			return err
		}
	}

	err = config.InitConfig(path)
	if err != nil {
		return err
	}

	fmt.Printf("Created config file: %s\n", path)
	return err
}
