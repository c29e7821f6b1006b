package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/apexflow/pumpselect/internal/catalog"
	"github.com/apexflow/pumpselect/internal/model"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the pump catalog",
}

var catalogSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the built-in demonstration catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		return catalog.Seed(ctx, st)
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog pumps",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		pumps, err := st.ListCandidatePumps(ctx, catalog.PumpFilter{})
		if err != nil {
			return eris.Wrap(err, "list pumps")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pumps)
	},
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file.yaml|file.json>",
	Short: "Bulk-load pumps and curves from a catalog file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pumps, err := loadPumpFile(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		curves, err := catalog.ImportPumps(ctx, st, pumps)
		if err != nil {
			return eris.Wrap(err, "import catalog")
		}
		zap.L().Info("catalog imported",
			zap.String("file", args[0]),
			zap.Int("pumps", len(pumps)),
			zap.Int64("curves", curves))
		return nil
	},
}

// loadPumpFile parses a catalog file into pumps and validates every
// specification before anything touches the store.
func loadPumpFile(path string) ([]model.Pump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read catalog file %s", path)
	}

	var pumps []model.Pump
	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, &pumps)
	} else {
		err = yaml.Unmarshal(data, &pumps)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "parse catalog file %s", path)
	}

	for _, p := range pumps {
		if p.Code == "" {
			return nil, eris.Errorf("catalog file %s: pump with empty code", path)
		}
		if err := p.Spec.Validate(); err != nil {
			return nil, eris.Wrapf(err, "catalog file %s: pump %s", path, p.Code)
		}
	}
	return pumps, nil
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Scan catalog data for problems that would degrade selection",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := catalog.Check(ctx, st)
		if err != nil {
			return eris.Wrap(err, "catalog check")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if len(report.Issues) > 0 {
			return eris.Errorf("catalog check found %d issues", len(report.Issues))
		}
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogSeedCmd, catalogListCmd, catalogImportCmd, catalogCheckCmd)
	rootCmd.AddCommand(catalogCmd)
}
