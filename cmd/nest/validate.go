package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rgehrsitz/nest/internal/ai"
	"rgehrsitz/nest/internal/preprocessor"
	"rgehrsitz/nest/internal/programs"
)

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [files...]",
		Short: "Check rule files and the built-in programs",
		Long: "Parse and validate rule files. With no arguments the files listed in the " +
			"config are checked. The built-in programs are always built.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			n, err := buildPrograms()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "built-in: %d rules\n", n)

			files := args
			if len(files) == 0 {
				files = c.cfg.Rules.Files
			}
			for _, path := range files {
				rs, err := preprocessor.LoadFile(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %d rules\n", path, len(rs))
			}
			return nil
		},
	}
}

// buildPrograms builds the built-in programs, reporting a malformed rule as
// an error rather than a panic.
func buildPrograms() (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("built-in programs: %v", r)
		}
	}()
	return len(programs.All(ai.Offline{})), nil
}
