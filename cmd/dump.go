package cmd

import (
	"fmt"

	"idlc/internal"

	"github.com/spf13/cobra"
)

// dump: print what the compiler resolved
var DumpCmd = &cobra.Command{
	Use:   "dump [file.idl]",
	Short: "Print the resolved declarations of an IDL file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		options, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		gen := &internal.DumpGenerator{}
		if err := compileFile(cmd, options, args[0], gen); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), gen.String())
		return nil
	},
}
