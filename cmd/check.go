package cmd

import (
	"errors"

	"idlc/internal"

	"github.com/spf13/cobra"
)

// check: validate files without generating code
var CheckCmd = &cobra.Command{
	Use:   "check [file.idl...]",
	Short: "Report diagnostics for one or more IDL files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		options, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		failed := false
		for _, path := range args {
			err := compileFile(cmd, options, path, internal.NoopGenerator{})
			if errors.Is(err, internal.ErrCompileFailed) {
				failed = true
				continue
			}
			if err != nil {
				return err
			}
		}
		if failed {
			return internal.ErrCompileFailed
		}
		return nil
	},
}
