// Package preload seeds reference rows at application start: list models,
// keyed model records, and renames of unique field values.
package preload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Lumos-Labs-HQ/preload/internal/models"
	"github.com/fatih/color"
	"go.uber.org/zap"
)

var errorStyle = color.New(color.FgRed, color.Bold)

type Preloader struct {
	ListData          ListData
	ModelData         ModelData
	UniqueFieldData   UniqueFieldData
	ListDataModelName string

	apps       models.Apps
	out        io.Writer
	logger     *zap.Logger
	listFields ListFields
	summary    Summary
}

type Option func(*Preloader)

func WithListData(data ListData) Option {
	return func(p *Preloader) { p.ListData = data }
}

func WithModelData(data ModelData) Option {
	return func(p *Preloader) { p.ModelData = data }
}

func WithUniqueFieldData(data UniqueFieldData) Option {
	return func(p *Preloader) { p.UniqueFieldData = data }
}

// WithListDataModelName restricts the list pass to a single model.
func WithListDataModelName(label string) Option {
	return func(p *Preloader) { p.ListDataModelName = label }
}

// WithApps replaces models.DefaultRegistry as the source of model handles.
func WithApps(apps models.Apps) Option {
	return func(p *Preloader) { p.apps = apps }
}

// WithOutput sets the stream that receives non-fatal errors.
func WithOutput(w io.Writer) Option {
	return func(p *Preloader) { p.out = w }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Preloader) { p.logger = logger }
}

func WithListFields(fields ListFields) Option {
	return func(p *Preloader) { p.listFields = fields }
}

// New builds a Preloader and runs the list, model and unique field passes in
// that order. A pass with no input is skipped.
func New(ctx context.Context, opts ...Option) (*Preloader, error) {
	p := &Preloader{
		apps:       models.DefaultRegistry,
		out:        color.Output,
		logger:     zap.NewNop(),
		listFields: DefaultListFields,
	}
	for _, opt := range opts {
		opt(p)
	}

	if len(p.ListData) > 0 {
		if err := p.LoadListData(ctx, p.ListDataModelName); err != nil {
			return p, err
		}
	}
	if len(p.ModelData) > 0 {
		if err := p.LoadModelData(ctx); err != nil {
			return p, err
		}
	}
	if len(p.UniqueFieldData) > 0 {
		if err := p.UpdateUniqueFieldData(ctx); err != nil {
			return p, err
		}
	}
	p.logger.Info("preload finished", zap.Stringer("summary", p.summary))
	return p, nil
}

func (p *Preloader) Summary() Summary { return p.summary }

// LoadListData creates or updates list model rows. The display index of each
// row is its position in the supplied choices. When modelName is set only that
// model is loaded.
func (p *Preloader) LoadListData(ctx context.Context, modelName string) error {
	labels := p.ListData.labels()
	if modelName != "" {
		if _, ok := p.ListData[modelName]; !ok {
			return fmt.Errorf("no list data for model %s", modelName)
		}
		labels = []string{modelName}
	}

	f := p.listFields
	for _, label := range labels {
		choices := p.ListData[label]
		model, err := p.apps.GetModel(label)
		if err != nil {
			return &PreloadDataError{Message: err.Error(), Data: choices, Err: err}
		}

		var created, updated int
		for index, choice := range choices {
			obj, err := model.Get(ctx, models.Row{f.Name: choice.Name})
			switch {
			case errors.Is(err, models.ErrDoesNotExist):
				if err := model.Create(ctx, models.Row{
					f.Name:         choice.Name,
					f.DisplayName:  choice.DisplayName,
					f.DisplayIndex: index,
				}); err != nil {
					return fmt.Errorf("failed to create %s %q: %w", label, choice.Name, err)
				}
				created++
			case err != nil:
				return fmt.Errorf("failed to get %s %q: %w", label, choice.Name, err)
			default:
				obj[f.DisplayName] = choice.DisplayName
				obj[f.DisplayIndex] = index
				if err := model.Save(ctx, obj); err != nil {
					return fmt.Errorf("failed to save %s %q: %w", label, choice.Name, err)
				}
				updated++
			}
		}

		p.summary.Created += created
		p.summary.Updated += updated
		p.logger.Debug("loaded list data",
			zap.String("model", label),
			zap.Int("created", created),
			zap.Int("updated", updated))
	}
	return nil
}

// LoadModelData creates rows that are missing and overwrites the supplied
// fields of rows that exist, matching on the model's unique field. Models are
// visited after the models whose tables they reference.
//
// A constraint violation while creating is ignored: the row is assumed to be
// there already. This also hides rows that clash on some other unique
// constraint.
func (p *Preloader) LoadModelData(ctx context.Context) error {
	for _, key := range p.modelDataOrder() {
		model, err := p.apps.GetModel(key.Model)
		if err != nil {
			return err
		}

		desc := model.Descriptor()
		uniqueField := key.UniqueField
		if uniqueField == "" {
			uniqueField = p.GuessUniqueField(desc)
		}
		if uniqueField == "" {
			return fmt.Errorf("model %s has no unique field to match rows on", key.Model)
		}
		if _, ok := desc.Field(uniqueField); !ok && len(desc.Fields) > 0 {
			return fmt.Errorf("model %s has no field %s", key.Model, uniqueField)
		}

		var created, updated, skipped int
		for _, opts := range p.ModelData[key] {
			obj, err := model.Get(ctx, models.Row{uniqueField: opts[uniqueField]})
			switch {
			case errors.Is(err, models.ErrDoesNotExist):
				err := model.Create(ctx, opts)
				if errors.Is(err, models.ErrIntegrity) {
					p.logger.Debug("create skipped",
						zap.String("model", key.Model),
						zap.Any(uniqueField, opts[uniqueField]),
						zap.Error(err))
					skipped++
					continue
				}
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", key.Model, err)
				}
				created++
			case err != nil:
				return fmt.Errorf("failed to get %s: %w", key.Model, err)
			default:
				for k, v := range opts {
					obj[k] = v
				}
				if err := model.Save(ctx, obj); err != nil {
					return fmt.Errorf("failed to save %s: %w", key.Model, err)
				}
				updated++
			}
		}

		p.summary.Created += created
		p.summary.Updated += updated
		p.summary.Skipped += skipped
		p.logger.Debug("loaded model data",
			zap.String("model", key.Model),
			zap.String("unique_field", uniqueField),
			zap.Int("created", created),
			zap.Int("updated", updated),
			zap.Int("skipped", skipped))
	}
	return nil
}

// modelDataOrder sorts the model data keys by table references. Models that
// cannot be resolved keep their place and fail when they are loaded.
func (p *Preloader) modelDataOrder() []ModelKey {
	keys := p.ModelData.keys()

	descs := make(map[string]models.Descriptor, len(keys))
	byTable := make(map[string]string, len(keys))
	for _, key := range keys {
		model, err := p.apps.GetModel(key.Model)
		if err != nil {
			continue
		}
		desc := model.Descriptor()
		descs[key.Model] = desc
		byTable[desc.Table] = key.Model
	}

	graph := models.NewDependencyGraph()
	for _, key := range keys {
		var deps []string
		for _, table := range descs[key.Model].References {
			if label, ok := byTable[table]; ok {
				deps = append(deps, label)
			}
		}
		graph.Add(key.Model, deps...)
	}
	order, err := graph.Order()
	if err != nil {
		p.logger.Warn("ignoring model references", zap.Error(err))
		return keys
	}

	rank := make(map[string]int, len(order))
	for i, label := range order {
		rank[label] = i
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return rank[keys[i].Model] < rank[keys[j].Model]
	})
	return keys
}

// UpdateUniqueFieldData renames unique field values. If a row with the new
// value already exists the old row is deleted instead, unless something still
// references it.
func (p *Preloader) UpdateUniqueFieldData(ctx context.Context) error {
	for _, label := range p.UniqueFieldData.labels() {
		model, err := p.apps.GetModel(label)
		if err != nil {
			return err
		}
		data := p.UniqueFieldData[label]
		for _, field := range sortedFields(data) {
			if err := p.updateUniqueField(ctx, label, model, field, data[field]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Preloader) updateUniqueField(ctx context.Context, label string, model models.Model, field string, values Rename) error {
	log := p.logger.With(zap.String("model", label), zap.String("field", field))

	_, err := model.Get(ctx, models.Row{field: values.New})
	if err == nil {
		old, err := model.Get(ctx, models.Row{field: values.Old})
		if errors.Is(err, models.ErrDoesNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get %s %s=%v: %w", label, field, values.Old, err)
		}
		err = model.Delete(ctx, old)
		if errors.Is(err, models.ErrProtected) {
			log.Debug("old row is protected, keeping both", zap.Any("old", values.Old), zap.Error(err))
			p.summary.Skipped++
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to delete %s %s=%v: %w", label, field, values.Old, err)
		}
		p.summary.Deleted++
		log.Debug("deleted old row", zap.Any("old", values.Old), zap.Any("new", values.New))
		return nil
	}
	if !errors.Is(err, models.ErrDoesNotExist) {
		return fmt.Errorf("failed to get %s %s=%v: %w", label, field, values.New, err)
	}

	obj, err := model.Get(ctx, models.Row{field: values.Old})
	if errors.Is(err, models.ErrDoesNotExist) || errors.Is(err, models.ErrMultipleObjectsReturned) {
		p.report(err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get %s %s=%v: %w", label, field, values.Old, err)
	}

	obj[field] = values.New
	if err := model.Save(ctx, obj); err != nil {
		return fmt.Errorf("failed to rename %s %s=%v: %w", label, field, values.Old, err)
	}
	p.summary.Renamed++
	log.Debug("renamed row", zap.Any("old", values.Old), zap.Any("new", values.New))
	return nil
}

// GuessUniqueField returns the first declared unique field other than id.
func (p *Preloader) GuessUniqueField(desc models.Descriptor) string {
	return GuessUniqueField(desc)
}

func GuessUniqueField(desc models.Descriptor) string {
	for _, f := range desc.Fields {
		if f.Unique && f.Name != "id" {
			return f.Name
		}
	}
	return ""
}

func (p *Preloader) report(err error) {
	p.summary.Reported++
	fmt.Fprintln(p.out, errorStyle.Sprintf("ERROR: %s", err))
}
