package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage encryption of stored API keys",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rotate",
		Short: "Re-encrypt stored API keys under MASTER_KEY_CURRENT_ID",
		Long: "Re-encrypt every stored API key with the current master key. Keep the old key\n" +
			"configured until this has run, then it can be removed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.persister.RotateKeys(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Re-encrypted %d API keys with key %q\n", n, a.cfg.Crypto.CurrentKeyID)
			return nil
		},
	})
	return cmd
}

func auditCmd() *cobra.Command {
	var (
		limit      uint64
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent changes to providers and assistants",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			recs, err := a.store.RecentActions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				data, _ := json.MarshalIndent(recs, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "TIME\tSUBJECT\tACTION\tDETAILS\n")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.CreatedAt.Local().Format(time.DateTime), r.Subject, r.Action, r.MetaJSON)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Uint64Var(&limit, "limit", 20, "number of entries")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
