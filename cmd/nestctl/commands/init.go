package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/printer"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/scaffold"
)

var (
	forceInit bool
	initDir   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write starter configuration files",
	Long: `Write the starter files of a StudentNest deployment:

  • nest.yml     - server and market configuration
  • catalog.yml  - development actors, properties and rooms
  • .env.example - the secrets nestd needs

Use --force to overwrite existing files.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite existing files")
	initCmd.Flags().StringVarP(&initDir, "dir", "d", ".", "Directory to write into")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := scaffold.Initialize(initDir, forceInit); err != nil {
		return printer.Error("initialization failed", err.Error(), nil)
	}
	scaffold.PrintSuccess(os.Stdout, initDir)
	return nil
}
