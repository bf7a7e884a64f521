package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func assistantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "assistants",
		Aliases: []string{"assistant"},
		Short:   "Manage saved assistants",
	}
	cmd.AddCommand(assistantsListCmd(), assistantsShowCmd(), assistantsRemoveCmd(), assistantsResetCmd())
	return cmd
}

func assistantsListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assistants",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			list := a.assistants.List()
			if jsonOutput {
				data, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "ID\tNAME\tDESCRIPTION\n")
			for _, d := range list {
				fmt.Fprintf(tw, "%s\t%s %s\t%s\n", d.ID, d.Icon, d.Name, d.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func assistantsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print an assistant including its system prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.assistants.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n%s\n\n%s\n", d.Icon, d.Name, d.Description, d.SystemPrompt)
			return nil
		},
	}
}

func assistantsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete an assistant",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.assistants.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func assistantsResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Replace all assistants with the built-in defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if !yes && interactive() {
				ok, err := promptConfirm("Replace all assistants with the defaults?", false)
				if err != nil || !ok {
					return err
				}
			}
			list, err := a.assistants.Reset(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Restored %d default assistants\n", len(list))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}
