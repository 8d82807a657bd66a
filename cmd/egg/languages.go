package main

import (
	"fmt"

	"github.com/spf13/cobra"

	egglangtable "github.com/henhouse/egg/langtable"
)

// LanguagesCmd prints every language the current process can hatch.
var LanguagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "`languages` lists the supported cell languages and their commands",
	Long:  "`languages` lists the supported cell languages and their commands.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		table := egglangtable.Default()
		for _, lang := range table.Languages() {
			cmdVec, _ := table.Lookup(lang)
			fmt.Printf("%s\t%v\n", lang, cmdVec)
		}
	},
}
