// Package completions implements `pkger print-completions SHELL`.
package completions

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Command is the `print-completions` command declaration. Its Run
// walks up to the root command at execution time so it can generate
// completions for the whole command tree.
var Command = &cobra.Command{
	Use:       "print-completions {bash|zsh|fish|powershell}",
	Short:     "Write shell completions for the given shell to stdout",
	Args:      cobra.ExactValidArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE:      run,
}

func run(cobraCommand *cobra.Command, args []string) error {
	root := cobraCommand.Root()
	switch args[0] {
	case "bash":
		return root.GenBashCompletion(os.Stdout)
	case "zsh":
		return root.GenZshCompletion(os.Stdout)
	case "fish":
		return root.GenFishCompletion(os.Stdout, true)
	case "powershell":
		return root.GenPowerShellCompletion(os.Stdout)
	default:
		return fmt.Errorf("unsupported shell %q", args[0])
	}
}
