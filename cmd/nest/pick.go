package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rgehrsitz/nest/internal/api"
	"rgehrsitz/nest/internal/rules"
	"rgehrsitz/nest/internal/runtime"
)

// contextFlags are the inputs shared by pick and explain.
type contextFlags struct {
	contextPath string
	now         string
}

func (f *contextFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.contextPath, "context", "c", "",
		"JSON rule context file, or - for stdin")
	cmd.Flags().StringVar(&f.now, "now", "",
		"Evaluation time in RFC 3339, overriding the context's now (default: wall clock)")
}

func (f *contextFlags) read(cmd *cobra.Command) (*rules.RuleContext, error) {
	rc := &rules.RuleContext{}
	if f.contextPath != "" {
		data, err := readInput(cmd, f.contextPath)
		if err != nil {
			return nil, fmt.Errorf("read context: %w", err)
		}
		if err := json.Unmarshal(data, rc); err != nil {
			return nil, fmt.Errorf("parse context: %w", err)
		}
	}
	if f.now != "" {
		now, err := time.Parse(time.RFC3339, f.now)
		if err != nil {
			return nil, fmt.Errorf("invalid --now: %w", err)
		}
		rc.Now = now
	}
	return rc, nil
}

func (c *cli) pickCmd() *cobra.Command {
	var (
		flags contextFlags
		id    api.Identity
	)
	cmd := &cobra.Command{
		Use:   "pick <screen> <slot>",
		Short: "Resolve the content a slot would show",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := flags.read(cmd)
			if err != nil {
				return err
			}

			b, err := openBackend(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			rs, err := loadRules(c.cfg, newAIClient(c.cfg))
			if err != nil {
				return err
			}

			sel := runtime.New().PickForSlot(cmd.Context(), rs, rules.Screen(args[0]), rules.Slot(args[1]), rc, b.source.For(id))
			if sel == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No rule matched.")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), sel)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&id.BabyID, "baby", "cli", "Baby ID the cache is scoped to")
	cmd.Flags().StringVar(&id.FamilyID, "family", "", "Family ID stored on cache rows")
	cmd.Flags().StringVar(&id.UserID, "user", "", "User ID stored on cache rows")
	return cmd
}

func (c *cli) explainCmd() *cobra.Command {
	var flags contextFlags
	cmd := &cobra.Command{
		Use:   "explain <screen> <slot>",
		Short: "List the rules matching a slot in selection order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := flags.read(cmd)
			if err != nil {
				return err
			}
			rs, err := loadRules(c.cfg, newAIClient(c.cfg))
			if err != nil {
				return err
			}

			matched := runtime.New().Match(rs, rules.Screen(args[0]), rules.Slot(args[1]), rc)
			if len(matched) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No rule matched.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tRULE\tPRIORITY\tTEMPLATE")
			for i, r := range matched {
				marker := ""
				if i == 0 {
					marker = " *"
				}
				fmt.Fprintf(w, "%d\t%s%s\t%d\t%s\n", i+1, r.Name, marker, r.Priority, r.Content.Template)
			}
			return w.Flush()
		},
	}
	flags.register(cmd)
	return cmd
}
