package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var parseCmd = &cobra.Command{
	Use:   "parse LINE...",
	Short: "Show how a line compiles without running it.",
	Long: `Compiles the line and prints the resulting pipeline as YAML.

Multiple arguments are joined with spaces, so quote the line to keep your own
shell from interpreting pipes and redirects.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		spec, err := shell.Compile(strings.Join(args, " "))
		if errors.Is(err, shell.ErrEndOfSession) {
			return errors.New("line is empty")
		}
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(spec)
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
