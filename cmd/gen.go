package cmd

import (
	"fmt"
	"os"

	"idlc/internal"

	"github.com/spf13/cobra"
)

var (
	genPackage   string
	genOut       string
	genGenerator string
)

// gen: generate code for the declarations of the main file
var GenCmd = &cobra.Command{
	Use:   "gen [file.idl]",
	Short: "Generate code for an IDL file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		options, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("package") {
			options.Package = genPackage
		}
		if cmd.Flags().Changed("generator") {
			options.Generator = genGenerator
		}
		if options.Generator == "" || options.Generator == "none" {
			options.Generator = "go"
		}

		gen, err := internal.NewGenerator(options.Generator, options.Package)
		if err != nil {
			return err
		}
		if err := compileFile(cmd, options, args[0], gen); err != nil {
			return err
		}

		emitter, ok := gen.(internal.Emitter)
		if !ok {
			return nil
		}
		out, err := emitter.Output()
		if err != nil {
			return err
		}
		if genOut == "" || genOut == "-" {
			_, err = cmd.OutOrStdout().Write(out)
			return err
		}
		if err := os.WriteFile(genOut, out, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", genOut, err)
		}
		return nil
	},
}

func init() {
	GenCmd.Flags().StringVar(&genPackage, "package", "idl", "package name of the generated Go file")
	GenCmd.Flags().StringVarP(&genOut, "out", "o", "", "output file, standard output when empty")
	GenCmd.Flags().StringVarP(&genGenerator, "generator", "g", "go", "generator to run: go or dump")
}
