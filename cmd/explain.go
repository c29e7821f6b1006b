package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/apexflow/pumpselect/internal/catalog"
)

var (
	explainList    bool
	explainSession string
	explainLimit   int
)

var explainCmd = &cobra.Command{
	Use:   "explain [trace-id]",
	Short: "Show the decision trace for a past selection run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if explainList {
			traces, err := st.ListTraces(ctx, catalog.TraceFilter{
				SessionID: explainSession,
				Limit:     explainLimit,
			})
			if err != nil {
				return eris.Wrap(err, "list traces")
			}
			return enc.Encode(traces)
		}

		if len(args) == 0 {
			return eris.New("trace-id is required unless --list is set")
		}

		eng := initEngine(st)
		trace, err := eng.Explain(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "explain %s", args[0])
		}
		return enc.Encode(trace)
	},
}

func init() {
	explainCmd.Flags().BoolVar(&explainList, "list", false, "list recent traces instead of showing one")
	explainCmd.Flags().StringVar(&explainSession, "session", "", "filter listed traces by session")
	explainCmd.Flags().IntVar(&explainLimit, "limit", 20, "max traces to list")
	rootCmd.AddCommand(explainCmd)
}
