// Command routerctl is the operator CLI for the routing layer: it validates
// config files, lists the catalog and providers, and runs one-shot selections
// against the same bootstrap path routerd uses.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	modelrouter "github.com/arc-labs/model-router"
	"github.com/arc-labs/model-router/catalog"
	"github.com/arc-labs/model-router/internal/version"
	"github.com/arc-labs/model-router/routing"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "routerctl",
		Short:         "Operator CLI for the model routing layer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (YAML or JSON); bundled catalog when empty")

	root.AddCommand(
		newValidateCmd(),
		newProvidersCmd(&cfgPath),
		newModelsCmd(&cfgPath),
		newSelectCmd(&cfgPath),
		newVersionCmd(),
	)
	return root
}

// buildRouter runs the shared bootstrap. routerctl and routerd go through the
// same path so what the CLI reports matches what the daemon serves.
func buildRouter(cfgPath string) (*modelrouter.Router, error) {
	var cfg modelrouter.Config
	if cfgPath != "" {
		loaded, err := modelrouter.LoadConfig(cfgPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	return modelrouter.NewBootstrap(cfg).All()
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a config file against the schema and semantic rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := modelrouter.LoadConfig(args[0])
			if err != nil {
				return err
			}
			cmd.Printf("%s: valid (%d providers, %d tools)\n", args[0], len(cfg.Providers), len(cfg.Tools))
			return nil
		},
	}
}

func newProvidersCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers and their health state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			router, err := buildRouter(*cfgPath)
			if err != nil {
				return err
			}
			snap := router.HealthSnapshot()
			ids := make([]string, 0, len(snap))
			for id := range snap {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				h, err := router.Registry().Get(id)
				if err != nil {
					return err
				}
				cmd.Printf("%-16s %-10s models=%d\n", id, snap[id].State, len(h.Describe().Models))
			}
			return nil
		},
	}
}

func newModelsCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the capability catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			router, err := buildRouter(*cfgPath)
			if err != nil {
				return err
			}
			for _, m := range router.Catalog().All() {
				caps := m.Capabilities.Names()
				cmd.Printf("%-28s ctx=%-8d caps=%v\n", m.Key(), m.ContextWindow, caps)
			}
			return nil
		},
	}
}

func newSelectCmd(cfgPath *string) *cobra.Command {
	var (
		capNames   []string
		model      string
		prefer     string
		maxCost    float64
		minContext int
	)
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Run a one-shot selection and print the decision",
		RunE: func(cmd *cobra.Command, _ []string) error {
			router, err := buildRouter(*cfgPath)
			if err != nil {
				return err
			}
			required, err := catalog.CapabilitiesFromNames(capNames)
			if err != nil {
				return err
			}
			req := routing.RequestFeatures{
				Required:         required,
				Model:            model,
				PreferProvider:   prefer,
				MinContextTokens: minContext,
			}
			if cmd.Flags().Changed("max-cost") {
				req.MaxCostUSD = &maxCost
			}
			decision, err := router.Select(cmd.Context(), req)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(decision, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&capNames, "require", nil, "required capabilities (streaming, vision, tool_calling, web_search, thinking_mode, file_upload)")
	cmd.Flags().StringVar(&model, "model", "", "explicit model key or bare name")
	cmd.Flags().StringVar(&prefer, "prefer", "", "preferred provider hint")
	cmd.Flags().Float64Var(&maxCost, "max-cost", 0, "estimated cost ceiling in USD")
	cmd.Flags().IntVar(&minContext, "min-context", 0, "minimum context window in tokens")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version.String())
		},
	}
}
