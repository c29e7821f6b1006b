package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apexflow/pumpselect/internal/engine"
)

var (
	selectFlow        float64
	selectHead        float64
	selectNPSHa       float64
	selectDensity     float64
	selectViscosity   float64
	selectApplication string
	selectMaxResults  int
	selectSession     string
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Rank catalog pumps against a duty point",
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

		eng := initEngine(st)

		maxResults := selectMaxResults
		if maxResults == 0 {
			maxResults = cfg.Engine.MaxResults
		}

		result, err := eng.Select(ctx, engine.SelectionRequest{
			DutyFlowM3H:       selectFlow,
			DutyHeadM:         selectHead,
			NPSHaM:            selectNPSHa,
			FluidDensityKGM3:  selectDensity,
			FluidViscosityCST: selectViscosity,
			Application:       selectApplication,
			MaxResults:        maxResults,
			SessionID:         selectSession,
		})
		if err != nil {
			return eris.Wrap(err, "selection run")
		}

		zap.L().Info("selection complete",
			zap.String("trace_id", result.TraceID),
			zap.String("selected", result.Selected),
			zap.Int("ranked", len(result.Ranked)),
			zap.Bool("partial", result.Partial),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	selectCmd.Flags().Float64Var(&selectFlow, "flow", 0, "duty flow in m3/h (required)")
	selectCmd.Flags().Float64Var(&selectHead, "head", 0, "duty head in m (required)")
	selectCmd.Flags().Float64Var(&selectNPSHa, "npsha", 0, "available NPSH at the duty point in m")
	selectCmd.Flags().Float64Var(&selectDensity, "density", 0, "fluid density in kg/m3 (default water)")
	selectCmd.Flags().Float64Var(&selectViscosity, "viscosity", 0, "fluid kinematic viscosity in cSt")
	selectCmd.Flags().StringVar(&selectApplication, "application", "", "restrict candidates to one pump type")
	selectCmd.Flags().IntVar(&selectMaxResults, "max-results", 0, "ranked candidates to print (default from config)")
	selectCmd.Flags().StringVar(&selectSession, "session", "", "session identifier recorded on the trace")
	_ = selectCmd.MarkFlagRequired("flow")
	_ = selectCmd.MarkFlagRequired("head")
	rootCmd.AddCommand(selectCmd)
}
