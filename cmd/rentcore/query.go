package main

import (
	"net/url"

	"github.com/spf13/cobra"

	"rentcore/internal/core"
)

// withEngine opens the configured backend read-only and hands an engine to fn.
func withEngine(cmd *cobra.Command, flags *rootFlags, fn func(*core.Engine) error) error {
	rt, err := loadRuntime(cmd, flags)
	if err != nil {
		return err
	}
	defer rt.close()

	reader, err := core.OpenReader(rt.cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return err
	}
	defer func() { _ = core.CloseStore(reader) }()

	return fn(core.NewPortfolioEngine(reader, rt.engineOptions()...))
}

func treeCmd(flags *rootFlags) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the entity hierarchy with document counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, func(engine *core.Engine) error {
				forest, err := engine.BuildTree(cmd.Context(), scope)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), forest)
			})
		},
	}
	cmd.Flags().StringVar(&scope, "entity", "", "restrict to one entity id")
	return cmd
}

func documentsCmd(flags *rootFlags) *cobra.Command {
	var scope string
	filters := map[string]*string{
		"search":      new(string),
		"category":    new(string),
		"association": new(string),
		"from":        new(string),
		"to":          new(string),
	}
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List the documents of a scope matching the given filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := url.Values{}
			for key, value := range filters {
				if *value != "" {
					values.Set(key, *value)
				}
			}
			predicate, err := core.ParsePredicate(values)
			if err != nil {
				return err
			}
			return withEngine(cmd, flags, func(engine *core.Engine) error {
				docs, err := engine.Search(cmd.Context(), scope, predicate)
				if err != nil {
					return err
				}
				if docs == nil {
					docs = []core.ScopedDocument{}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"documents": docs, "total": len(docs)})
			})
		},
	}
	cmd.Flags().StringVar(&scope, "entity", "", "restrict to one entity id")
	cmd.Flags().StringVar(filters["search"], "search", "", "case-insensitive text over title, file name, description and tags")
	cmd.Flags().StringVar(filters["category"], "category", "", "exact category")
	cmd.Flags().StringVar(filters["association"], "association", "", "all|lot|tenant|tenant_group|candidate|ambiguous")
	cmd.Flags().StringVar(filters["from"], "from", "", "uploaded on or after (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(filters["to"], "to", "", "uploaded on or before, inclusive of the whole day")
	return cmd
}

func statsCmd(flags *rootFlags) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise the documents of a scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, func(engine *core.Engine) error {
				summary, err := engine.Stats(cmd.Context(), scope)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
	cmd.Flags().StringVar(&scope, "entity", "", "restrict to one entity id")
	return cmd
}
