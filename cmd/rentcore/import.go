package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rentcore/internal/core"
	"rentcore/internal/infra/persistence/memory"
)

func importCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <snapshot.json>",
		Short: "Load a portfolio snapshot into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			var snap memory.Snapshot
			if err := json.Unmarshal(payload, &snap); err != nil {
				return fmt.Errorf("decode snapshot %s: %w", args[0], err)
			}

			rt, err := loadRuntime(cmd, flags)
			if err != nil {
				return err
			}
			defer rt.close()

			store, err := core.OpenPersistentStore(rt.cfg.Storage, core.NewDefaultRulesEngine())
			if err != nil {
				return err
			}
			defer func() { _ = core.CloseStore(store) }()

			svc := core.NewService(store, nil, rt.engineOptions()...)
			res, err := svc.ImportSnapshot(cmd.Context(), snap)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range res.Violations {
				fmt.Fprintf(out, "%s\t%s\t%s %s: %s\n", v.Severity, v.Rule, v.Entity, v.EntityID, v.Message)
			}
			fmt.Fprintf(out, "imported %d entities, %d lots, %d documents\n",
				len(snap.Entities), len(snap.Lots), len(snap.Documents))
			return nil
		},
	}
}
