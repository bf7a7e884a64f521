package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"assistdeck/internal/providers"
)

func providersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "providers",
		Aliases: []string{"provider"},
		Short:   "Manage configured AI providers",
	}
	cmd.AddCommand(
		providersListCmd(),
		providersAddCmd(),
		providersUseCmd(),
		providersRemoveCmd(),
		providersTestCmd(),
		presetsCmd(),
	)
	return cmd
}

func providersListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			list := a.registry.Providers()
			for i := range list {
				list[i].APIKey = providers.RedactKey(list[i].APIKey)
			}
			if jsonOutput {
				data, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			if len(list) == 0 {
				fmt.Println("No providers configured.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "ACTIVE\tID\tNAME\tKIND\tPRESET\tMODEL\tBASE URL\tKEY\n")
			for _, p := range list {
				mark := ""
				if p.IsActive {
					mark = "*"
				}
				preset, ok := providers.PresetForBaseURL(p.BaseURL)
				if !ok {
					preset = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					mark, p.ID, p.Name, providers.NormalizeKind(p.Kind), preset, p.ModelName, p.BaseURL, p.APIKey)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func providersAddCmd() *cobra.Command {
	var (
		preset string
		in     providers.Config
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a provider, from a preset or explicit fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if interactive() {
				if err := fillProviderInteractively(&preset, &in); err != nil {
					return err
				}
			}
			var added providers.Config
			if preset != "" && in == (providers.Config{APIKey: in.APIKey}) {
				added, err = a.registry.AddFromPreset(cmd.Context(), preset, in.APIKey)
			} else {
				cfg, rerr := resolveProvider(preset, in)
				if rerr != nil {
					return rerr
				}
				added, err = a.registry.Add(cmd.Context(), cfg)
			}
			var verrs providers.ValidationErrors
			if errors.As(err, &verrs) {
				for field, msg := range verrs {
					fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
				}
				return errors.New("provider is invalid")
			}
			if err != nil {
				return err
			}
			fmt.Printf("Added %s (%s)", added.Name, added.ID)
			if added.IsActive {
				fmt.Print(", now active")
			}
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "", "preset key (see 'providers presets')")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Kind, "kind", "", "openai_compat or gemini")
	cmd.Flags().StringVar(&in.BaseURL, "base-url", "", "API base URL")
	cmd.Flags().StringVar(&in.APIKey, "api-key", "", "API key")
	cmd.Flags().StringVar(&in.ModelName, "model", "", "model name")
	return cmd
}

// resolveProvider fills blank fields of in from the preset, if one is named.
func resolveProvider(preset string, in providers.Config) (providers.Config, error) {
	if preset == "" {
		return in, nil
	}
	p, ok := providers.LookupPreset(preset)
	if !ok {
		return in, fmt.Errorf("unknown preset %q", preset)
	}
	if in.Name == "" {
		in.Name = p.Name
	}
	if in.Kind == "" {
		in.Kind = p.Kind
	}
	if in.BaseURL == "" {
		in.BaseURL = p.BaseURL
	}
	if in.ModelName == "" {
		in.ModelName = p.Model
	}
	return in, nil
}

func fillProviderInteractively(preset *string, in *providers.Config) error {
	if *preset == "" && in.BaseURL == "" {
		options := []selectOption{{Label: "Custom endpoint", Value: ""}}
		for _, k := range providers.PresetKeys() {
			p, _ := providers.LookupPreset(k)
			options = append(options, selectOption{Label: p.Name + " - " + p.Description, Value: k})
		}
		v, err := promptSelect("Provider", options)
		if err != nil {
			return err
		}
		*preset = v
	}

	var defaults providers.Preset
	if *preset != "" {
		defaults, _ = providers.LookupPreset(*preset)
	}
	var err error
	if in.Name == "" {
		if in.Name, err = promptString("Name", defaults.Name); err != nil {
			return err
		}
	}
	if in.BaseURL == "" {
		if in.BaseURL, err = promptString("Base URL", defaults.BaseURL); err != nil {
			return err
		}
	}
	if in.ModelName == "" {
		if in.ModelName, err = promptString("Model", defaults.Model); err != nil {
			return err
		}
	}
	if in.APIKey == "" {
		if in.APIKey, err = promptPassword("API key"); err != nil {
			return err
		}
	}
	return nil
}

func providersUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Make a provider the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.registry.SetActive(cmd.Context(), args[0]); err != nil {
				return err
			}
			active, _ := a.registry.Active()
			fmt.Printf("Active provider: %s\n", active.Name)
			return nil
		},
	}
}

func providersRemoveCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a provider",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.registry.Get(args[0])
			if err != nil {
				return err
			}
			if !yes && interactive() {
				ok, err := promptConfirm(fmt.Sprintf("Delete provider %q?", p.Name), false)
				if err != nil || !ok {
					return err
				}
			}
			if err := a.registry.Delete(cmd.Context(), p.ID); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", p.Name)
			if active, ok := a.registry.Active(); ok {
				fmt.Printf("Active provider: %s\n", active.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func providersTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test [id]",
		Short: "Check connectivity of a provider (the active one by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var p providers.Config
			if len(args) == 1 {
				if p, err = a.registry.Get(args[0]); err != nil {
					return err
				}
			} else {
				var ok bool
				if p, ok = a.registry.Active(); !ok {
					return errors.New("no active provider")
				}
			}
			return probe(cmd.Context(), a, p)
		},
	}
}

func probe(ctx context.Context, a *app, p providers.Config) error {
	client, err := a.build(p)
	if err != nil {
		return err
	}
	res := client.Test(ctx)
	fmt.Printf("%s: %s\n", p.Name, res.Message)
	if res.Details != "" {
		fmt.Printf("  %s\n", res.Details)
	}
	if res.ResponseTimeMs != nil {
		fmt.Printf("  response time: %dms\n", *res.ResponseTimeMs)
	}
	if !res.Success {
		return errors.New("connection test failed")
	}
	return nil
}

func presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List built-in provider presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "KEY\tNAME\tMODEL\tBASE URL\n")
			for _, k := range providers.PresetKeys() {
				p, _ := providers.LookupPreset(k)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", k, p.Name, p.Model, p.BaseURL)
			}
			return tw.Flush()
		},
	}
}
