package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	buildCmd "github.com/pkger-build/pkger/cmd/build"
	"github.com/pkger-build/pkger/cmd/cleancache"
	"github.com/pkger-build/pkger/cmd/completions"
	copyCmd "github.com/pkger-build/pkger/cmd/copy"
	"github.com/pkger-build/pkger/cmd/edit"
	"github.com/pkger-build/pkger/cmd/initcmd"
	"github.com/pkger-build/pkger/cmd/list"
	"github.com/pkger-build/pkger/cmd/newcmd"
)

var rootCmd = &cobra.Command{
	Use:   "pkger",
	Short: "pkger builds native OS packages from declarative recipes",
	Long:  ``,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(buildCmd.Command)
	rootCmd.AddCommand(list.Command)
	rootCmd.AddCommand(cleancache.Command)
	rootCmd.AddCommand(edit.Command)
	rootCmd.AddCommand(newcmd.Command)
	rootCmd.AddCommand(copyCmd.Command)
	rootCmd.AddCommand(initcmd.Command)
	rootCmd.AddCommand(completions.Command)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
