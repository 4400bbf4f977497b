package cmd

import (
	"context"
	"fmt"

	"github.com/Lumos-Labs-HQ/preload/internal/config"
	"github.com/Lumos-Labs-HQ/preload/internal/database"
	"github.com/Lumos-Labs-HQ/preload/internal/datafile"
	"github.com/Lumos-Labs-HQ/preload/internal/models"
	"github.com/Lumos-Labs-HQ/preload/internal/preload"
	"github.com/Lumos-Labs-HQ/preload/internal/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	loadFile      string
	loadListModel string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the data file into the database",
	Long: `
Load list data, model data and unique field renames from the data file.

Rows are matched on their unique field, so running load twice leaves the
database unchanged. Renames whose old value cannot be found are reported
and skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg, verbose)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		defer logger.Sync()

		opts := loadOptions{file: loadFile, listModel: loadListModel}
		color.Cyan("🌱 Preloading data from %s...", opts.path(cfg))

		summary, err := runLoad(cmd.Context(), cfg, opts, logger)
		if err != nil {
			return err
		}
		color.Green("✅ Preload completed: %s", summary)
		return nil
	},
}

type loadOptions struct {
	file      string
	listModel string
}

func (o loadOptions) path(cfg *config.Config) string {
	if o.file != "" {
		return o.file
	}
	return cfg.DataPath
}

func runLoad(ctx context.Context, cfg *config.Config, opts loadOptions, logger *zap.Logger) (preload.Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	file, err := loadDataFile(cfg, opts.file)
	if err != nil {
		return preload.Summary{}, err
	}

	adapter, registry, err := openRegistry(ctx, cfg, file)
	if err != nil {
		return preload.Summary{}, err
	}
	defer adapter.Close()

	listModel := cfg.ListDataModel
	if opts.listModel != "" {
		listModel = opts.listModel
	}

	p, err := preload.New(ctx,
		preload.WithApps(registry),
		preload.WithLogger(logger),
		preload.WithListFields(cfg.PreloadListFields()),
		preload.WithListDataModelName(listModel),
		preload.WithListData(file.ListData()),
		preload.WithModelData(file.ModelData()),
		preload.WithUniqueFieldData(file.UniqueFieldData()),
	)
	if err != nil {
		return p.Summary(), err
	}
	return p.Summary(), nil
}

func loadDataFile(cfg *config.Config, file string) (*datafile.File, error) {
	return datafile.Load(loadOptions{file: file}.path(cfg))
}

func openRegistry(ctx context.Context, cfg *config.Config, file *datafile.File) (database.DatabaseAdapter, *models.Registry, error) {
	dbURL, err := cfg.GetDatabaseURL()
	if err != nil {
		return nil, nil, err
	}

	adapter, err := database.Open(ctx, cfg.Database.Provider, cfg.Database.Driver, dbURL)
	if err != nil {
		return nil, nil, err
	}

	registry, err := store.BuildRegistry(ctx, adapter, file.Descriptors())
	if err != nil {
		adapter.Close()
		return nil, nil, err
	}
	return adapter, registry, nil
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringVar(&loadFile, "file", "", "Data file to load (default is data_path from the config)")
	loadCmd.Flags().StringVar(&loadListModel, "list-model", "", "Only load list data for this model label")
}
