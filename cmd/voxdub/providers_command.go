package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"voxdub/internal/api"
	"voxdub/internal/apiclient"
	"voxdub/internal/logging"
	"voxdub/internal/tts/builtin"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List TTS providers and their availability",
		Long: `List TTS providers and their availability.

The running daemon is asked first so the listing reflects its current
selection. Without a daemon the providers are probed locally.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := fetchProviders(cmd, ctx)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, resp)
			}
			printProviders(cmd, resp)
			return nil
		},
	}
	cmd.AddCommand(newProvidersDefaultCommand(ctx))
	return cmd
}

func newProvidersDefaultCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "default <name>",
		Short: "Change the running daemon's preferred provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			resp, err := client.SetDefaultProvider(cmd.Context(), args[0])
			if apiclient.IsUnavailable(err) {
				return fmt.Errorf("daemon not reachable; set tts.default_provider in the config instead")
			}
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Preferred provider set to %s\n", resp.Preferred)
			return nil
		},
	}
}

func fetchProviders(cmd *cobra.Command, ctx *commandContext) (api.ProvidersResponse, error) {
	client, err := ctx.apiClient()
	if err != nil {
		return api.ProvidersResponse{}, err
	}
	resp, err := client.Providers(cmd.Context())
	if err == nil {
		return resp, nil
	}
	if !apiclient.IsUnavailable(err) {
		return api.ProvidersResponse{}, err
	}

	cfg := ctx.configValue()
	registry, err := builtin.NewRegistry(cfg, builtin.Deps{Logger: logging.NewNop()})
	if err != nil {
		return api.ProvidersResponse{}, err
	}
	defer registry.Close()

	statuses := registry.Describe(cmd.Context())
	out := api.ProvidersResponse{
		Preferred: registry.Preferred(),
		Current:   registry.Current(),
		Providers: make([]api.ProviderView, 0, len(statuses)),
	}
	for _, s := range statuses {
		out.Providers = append(out.Providers, api.FromProviderStatus(s))
	}
	return out, nil
}

func printProviders(cmd *cobra.Command, resp api.ProvidersResponse) {
	out := cmd.OutOrStdout()
	providers := append([]api.ProviderView(nil), resp.Providers...)
	sort.SliceStable(providers, func(i, j int) bool { return providers[i].Name < providers[j].Name })

	rows := make([][]string, 0, len(providers))
	for _, p := range providers {
		name := p.Name
		if p.Preferred {
			name += " *"
		}
		status := "available"
		if !p.Available {
			status = "unavailable"
			if p.Reason != "" {
				status += ": " + p.Reason
			}
		}
		rows = append(rows, []string{
			name,
			p.DisplayName,
			status,
			strings.Join(p.Capabilities, ", "),
			strconv.Itoa(len(p.Languages)),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Provider", "Name", "Status", "Capabilities", "Languages"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	))
	fmt.Fprintf(out, "Preferred: %s", resp.Preferred)
	if resp.Current != "" {
		fmt.Fprintf(out, " (resolves to %s)", resp.Current)
	}
	fmt.Fprintln(out)
}
