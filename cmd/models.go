package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/Lumos-Labs-HQ/preload/internal/models"
	"github.com/Lumos-Labs-HQ/preload/internal/preload"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var modelsFile string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models declared in the data file",
	Long: `
List every model declared in the data file with its table and the field
used to match existing rows. Fields that are not declared are read from
the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		file, err := loadDataFile(cfg, modelsFile)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		adapter, registry, err := openRegistry(ctx, cfg, file)
		if err != nil {
			return err
		}
		defer adapter.Close()

		color.Cyan("📋 Models in %s:", loadOptions{file: modelsFile}.path(cfg))
		printModels(cmd.OutOrStdout(), registry.Models())
		return nil
	},
}

func printModels(w io.Writer, list []models.Model) {
	for _, m := range list {
		desc := m.Descriptor()
		unique := preload.GuessUniqueField(desc)
		if unique == "" {
			unique = "-"
		}
		fmt.Fprintf(w, "  %-30s table=%-24s unique=%s fields=%d\n", desc.Label, desc.Table, unique, len(desc.Fields))
	}
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().StringVar(&modelsFile, "file", "", "Data file to read (default is data_path from the config)")
}
