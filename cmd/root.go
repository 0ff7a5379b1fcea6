package cmd

import (
	"idlc/internal"

	"github.com/spf13/cobra"
)

var (
	opts       = internal.DefaultOptions()
	configPath string
	overrides  []string
)

var rootCmd = &cobra.Command{
	Use:   "idlc",
	Short: "idlc - IDL compiler front end",
	Long: `idlc preprocesses, parses and checks OMG IDL files and hands the
declarations of the main file to a code generator.

Commands:
  check  Report diagnostics without generating anything
  gen    Generate code for the declarations of an IDL file
  dump   Print the resolved declarations as normalized IDL
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return err
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringArrayVarP(&opts.IncludePaths, "include", "I", nil, "add a directory to the include search path")
	flags.StringArrayVarP(&opts.Defines, "define", "D", nil, "predefine a preprocessor symbol as NAME or NAME=VALUE")
	flags.BoolVar(&opts.EmitAll, "emit-all", false, "also emit declarations from included files")
	flags.StringVar(&opts.Level, "level", opts.Level, "IDL language level: 2.2, 2.3, 2.4 or 3.0")
	flags.BoolVar(&opts.NoWarn, "no-warn", false, "suppress warnings")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "report progress")
	flags.StringVar(&configPath, "config", "", "load options from a YAML file")
	flags.StringArrayVar(&overrides, "override", nil, "resolve an unqualified NAME as ALIAS, given as NAME=ALIAS")

	rootCmd.AddCommand(CheckCmd, GenCmd, DumpCmd)
}

// loadOptions starts from the config file, if any, and applies every flag
// that was set on the command line.
func loadOptions(cmd *cobra.Command) (internal.Options, error) {
	result := opts
	if configPath != "" {
		file, err := internal.LoadOptions(configPath)
		if err != nil {
			return result, err
		}
		flags := cmd.Flags()
		file.IncludePaths = append(file.IncludePaths, opts.IncludePaths...)
		file.Defines = append(file.Defines, opts.Defines...)
		if flags.Changed("emit-all") {
			file.EmitAll = opts.EmitAll
		}
		if flags.Changed("level") {
			file.Level = opts.Level
		}
		if flags.Changed("no-warn") {
			file.NoWarn = opts.NoWarn
		}
		if flags.Changed("verbose") {
			file.Verbose = opts.Verbose
		}
		result = file
	}

	merged := make(map[string]string, len(result.Overrides)+len(overrides))
	for name, alias := range result.Overrides {
		merged[name] = alias
	}
	for _, o := range overrides {
		name, alias, err := internal.ParseOverride(o)
		if err != nil {
			return result, err
		}
		merged[name] = alias
	}
	result.Overrides = merged
	return result, nil
}

// compileFile runs one compile of path with its own symbol table and reporter.
func compileFile(cmd *cobra.Command, options internal.Options, path string, gen internal.Generator) error {
	rep := internal.NewReporter(cmd.ErrOrStderr(), options.NoWarn, options.Verbose)
	c, err := internal.NewCompiler(options, rep, gen)
	if err != nil {
		return err
	}
	return c.Compile(path)
}
