package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/unalkalkan/podcaster/internal/profile"
	"github.com/unalkalkan/podcaster/internal/provider"
)

func loadRegistry(cmd *cobra.Command, global *globalOptions) (*profile.Registry, string, error) {
	cfg, err := loadConfig(cmd, global)
	if err != nil {
		return nil, "", err
	}
	registry := profile.NewDefaultRegistry()
	if err := registry.LoadProfiles(cfg.Profiles); err != nil {
		return nil, "", err
	}
	return registry, cfg.Pipeline.DefaultProfile, nil
}

func newProvidersCmd(global *globalOptions) *cobra.Command {
	verbose := false
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List registered providers and their options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, _, err := loadRegistry(cmd, global)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, info := range registry.Providers() {
				fmt.Fprintf(out, "%-9s %-28s %s\n", info.Kind, info.Key, info.Name)
				if !verbose {
					continue
				}
				for _, o := range info.Options {
					fmt.Fprintf(out, "          --set %s.%s  %s\n", info.Kind, o.Name, describeOption(o))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show every option")
	return cmd
}

func describeOption(o provider.OptionSpec) string {
	parts := []string{string(o.Type)}
	if o.Default != nil && o.Default != "" {
		parts = append(parts, fmt.Sprintf("default %v", o.Default))
	}
	if len(o.Choices) > 0 {
		parts = append(parts, "one of "+strings.Join(o.Choices, "|"))
	}
	if o.EnvVar != "" {
		parts = append(parts, "env "+o.EnvVar)
	}
	if o.Required {
		parts = append(parts, "required")
	}
	desc := "(" + strings.Join(parts, ", ") + ")"
	if o.Description != "" {
		desc = o.Description + " " + desc
	}
	return desc
}

func newProfilesCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List provider profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, defaultProfile, err := loadRegistry(cmd, global)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range registry.Profiles() {
				marker := " "
				if p.Name == defaultProfile {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-20s %s\n", marker, p.Name, p.Description)
				fmt.Fprintf(out, "    document=%s llm=%s speech=%s\n", p.Document.Provider, p.LLM.Provider, p.Speech.Provider)
			}
			return nil
		},
	}
}
