package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/apexflow/pumpselect/internal/model"
)

var profileActivate bool

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage application profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		profiles, err := st.ListProfiles(ctx)
		if err != nil {
			return eris.Wrap(err, "list profiles")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profiles)
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		prof, err := st.GetActiveProfile(ctx)
		if err != nil {
			return eris.Wrap(err, "get active profile")
		}
		if prof == nil {
			return eris.New("no active profile")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(prof)
	},
}

var profileImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import a profile from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		var prof model.ApplicationProfile
		if err := yaml.Unmarshal(data, &prof); err != nil {
			return eris.Wrapf(err, "parse %s", args[0])
		}
		if err := prof.Validate(); err != nil {
			return eris.Wrap(err, "validate profile")
		}
		prof.Active = profileActivate

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		if err := st.SaveProfile(ctx, prof); err != nil {
			return eris.Wrap(err, "save profile")
		}

		zap.L().Info("profile imported",
			zap.String("id", prof.ID),
			zap.String("name", prof.Name),
			zap.Bool("active", prof.Active),
		)
		return nil
	},
}

func init() {
	profileImportCmd.Flags().BoolVar(&profileActivate, "activate", false, "mark the imported profile active")
	profileCmd.AddCommand(profileListCmd, profileShowCmd, profileImportCmd)
	rootCmd.AddCommand(profileCmd)
}
