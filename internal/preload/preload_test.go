package preload

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Lumos-Labs-HQ/preload/internal/models"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

type fixture struct {
	apps   *models.Registry
	status *models.MemoryModel
	site   *models.MemoryModel
	out    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		apps: models.NewRegistry(),
		status: models.NewMemoryModel(models.Descriptor{
			Label: "app.Status",
			Table: "app_status",
			Fields: []models.Field{
				{Name: "id", Primary: true, Unique: true},
				{Name: "name", Unique: true},
				{Name: "display_name"},
				{Name: "display_index"},
			},
		}),
		site: models.NewMemoryModel(models.Descriptor{
			Label: "sites.Site",
			Table: "sites_site",
			Fields: []models.Field{
				{Name: "id", Primary: true, Unique: true},
				{Name: "name"},
				{Name: "domain", Unique: true},
				{Name: "code", Unique: true},
			},
		}),
		out: &bytes.Buffer{},
	}
	require.NoError(t, f.apps.Register(f.status))
	require.NoError(t, f.apps.Register(f.site))
	return f
}

func (f *fixture) run(t *testing.T, opts ...Option) (*Preloader, error) {
	t.Helper()
	opts = append([]Option{WithApps(f.apps), WithOutput(f.out)}, opts...)
	return New(context.Background(), opts...)
}

func get(t *testing.T, m models.Model, filter models.Row) models.Row {
	t.Helper()
	row, err := m.Get(context.Background(), filter)
	require.NoError(t, err)
	return row
}

func TestListDataDisplayIndex(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, WithListData(ListData{
		"app.Status": {{"new", "New"}, {"done", "Done"}},
	}))
	require.NoError(t, err)

	assert.Equal(t, 0, get(t, f.status, models.Row{"name": "new"})["display_index"])
	assert.Equal(t, 1, get(t, f.status, models.Row{"name": "done"})["display_index"])

	_, err = f.run(t, WithListData(ListData{
		"app.Status": {{"done", "Done Label"}, {"new", "New"}},
	}))
	require.NoError(t, err)

	done := get(t, f.status, models.Row{"name": "done"})
	assert.Equal(t, 0, done["display_index"])
	assert.Equal(t, "Done Label", done["display_name"])
	assert.Equal(t, 1, get(t, f.status, models.Row{"name": "new"})["display_index"])
	assert.Len(t, f.status.Rows(), 2)
}

func TestListDataIdempotent(t *testing.T) {
	f := newFixture(t)
	data := WithListData(ListData{
		"app.Status": {{"new", "New"}, {"open", "Open"}, {"done", "Done"}},
	})

	p, err := f.run(t, data)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Summary().Created)
	first := f.status.Rows()

	p, err = f.run(t, data)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Summary().Created)
	assert.Equal(t, 3, p.Summary().Updated)
	assert.Equal(t, first, f.status.Rows())
}

func TestListDataRestrictedModel(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t,
		WithListData(ListData{
			"app.Status": {{"new", "New"}},
			"app.Other":  {{"x", "X"}},
		}),
		WithListDataModelName("app.Status"),
	)
	require.NoError(t, err)
	assert.Len(t, f.status.Rows(), 1)

	_, err = f.run(t,
		WithListData(ListData{"app.Status": {{"new", "New"}}}),
		WithListDataModelName("app.Missing"),
	)
	require.Error(t, err)
	var perr *PreloadDataError
	assert.False(t, errors.As(err, &perr))
}

func TestListDataResolutionError(t *testing.T) {
	f := newFixture(t)
	choices := []Choice{{"a", "A"}}

	_, err := f.run(t, WithListData(ListData{"app.Unknown": choices}))
	require.Error(t, err)

	var perr *PreloadDataError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, choices, perr.Data)
	assert.Equal(t, "App 'app' doesn't have a 'Unknown' model.", perr.Message)
	assert.ErrorIs(t, err, models.ErrModelNotFound)
	assert.Contains(t, err.Error(), "See [{a A}].")

	_, err = f.run(t, WithListData(ListData{"badlabel": choices}))
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, models.ErrInvalidLabel)
}

func TestListDataCustomFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t,
		WithListData(ListData{"app.Status": {{"new", "New"}}}),
		WithListFields(ListFields{Name: "name", DisplayName: "label", DisplayIndex: "position"}),
	)
	require.NoError(t, err)
	row := get(t, f.status, models.Row{"name": "new"})
	assert.Equal(t, "New", row["label"])
	assert.Equal(t, 0, row["position"])
}

func TestModelDataCreatesAndUpdates(t *testing.T) {
	f := newFixture(t)
	f.site.Insert(models.Row{"name": "Old", "domain": "b.org", "code": "20"})

	data := WithModelData(ModelData{
		{Model: "sites.Site"}: {
			{"name": "A", "domain": "a.org", "code": "10"},
			{"name": "B", "domain": "b.org", "code": "20"},
		},
	})
	p, err := f.run(t, data)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Summary().Created)
	assert.Equal(t, 1, p.Summary().Updated)

	assert.Equal(t, "A", get(t, f.site, models.Row{"domain": "a.org"})["name"])
	assert.Equal(t, "B", get(t, f.site, models.Row{"domain": "b.org"})["name"])

	before := f.site.Rows()
	_, err = f.run(t, data)
	require.NoError(t, err)
	assert.Equal(t, before, f.site.Rows())
}

func TestModelDataExplicitUniqueField(t *testing.T) {
	f := newFixture(t)
	f.site.Insert(models.Row{"name": "Old", "domain": "old.org", "code": "10"})

	_, err := f.run(t, WithModelData(ModelData{
		{Model: "sites.Site", UniqueField: "code"}: {
			{"name": "New", "domain": "new.org", "code": "10"},
		},
	}))
	require.NoError(t, err)

	rows := f.site.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "new.org", rows[0]["domain"])
}

func TestModelDataUndeclaredUniqueField(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, WithModelData(ModelData{
		{Model: "sites.Site", UniqueField: "slug"}: {{"name": "New", "slug": "new"}},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sites.Site has no field slug")
	assert.Empty(t, f.site.Rows())
}

// A row that clashes on a unique field other than the lookup field is dropped
// without error. This cannot be told apart from a row created concurrently.
func TestModelDataSwallowsIntegrityError(t *testing.T) {
	f := newFixture(t)
	f.site.Insert(models.Row{"name": "Taken", "domain": "taken.org", "code": "10"})

	p, err := f.run(t, WithModelData(ModelData{
		{Model: "sites.Site"}: {
			{"name": "Clash", "domain": "other.org", "code": "10"},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Summary().Skipped)

	rows := f.site.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Taken", rows[0]["name"])
}

func TestModelDataUnknownModelPropagates(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, WithModelData(ModelData{
		{Model: "sites.Nope"}: {{"domain": "x"}},
	}))
	require.ErrorIs(t, err, models.ErrModelNotFound)
	var perr *PreloadDataError
	assert.False(t, errors.As(err, &perr))
}

func TestModelDataNoUniqueField(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.apps.Register(models.NewMemoryModel(models.Descriptor{
		Label:  "app.Plain",
		Table:  "app_plain",
		Fields: []models.Field{{Name: "id", Primary: true, Unique: true}, {Name: "value"}},
	})))
	_, err := f.run(t, WithModelData(ModelData{
		{Model: "app.Plain"}: {{"value": 1}},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no unique field")
}

func TestGuessUniqueField(t *testing.T) {
	tests := []struct {
		name   string
		fields []models.Field
		want   string
	}{
		{"skips id", []models.Field{{Name: "id", Unique: true}, {Name: "code", Unique: true}}, "code"},
		{"first unique wins", []models.Field{{Name: "a"}, {Name: "b", Unique: true}, {Name: "c", Unique: true}}, "b"},
		{"none", []models.Field{{Name: "id", Unique: true}, {Name: "a"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GuessUniqueField(models.Descriptor{Fields: tt.fields}))
		})
	}
}

func TestUniqueFieldRename(t *testing.T) {
	f := newFixture(t)
	f.status.Insert(models.Row{"name": "closed", "display_name": "Closed", "display_index": 4})

	p, err := f.run(t, WithUniqueFieldData(UniqueFieldData{
		"app.Status": {"name": {Old: "closed", New: "done"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Summary().Renamed)

	_, err = f.status.Get(context.Background(), models.Row{"name": "closed"})
	assert.ErrorIs(t, err, models.ErrDoesNotExist)

	row := get(t, f.status, models.Row{"name": "done"})
	assert.Equal(t, "Closed", row["display_name"])
	assert.Equal(t, 4, row["display_index"])
	assert.Empty(t, f.out.String())
}

func TestUniqueFieldMergeDeletesOld(t *testing.T) {
	f := newFixture(t)
	f.status.Insert(
		models.Row{"name": "closed", "display_name": "Closed"},
		models.Row{"name": "done", "display_name": "Done"},
	)

	p, err := f.run(t, WithUniqueFieldData(UniqueFieldData{
		"app.Status": {"name": {Old: "closed", New: "done"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Summary().Deleted)

	rows := f.status.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "done", rows[0]["name"])
}

func TestUniqueFieldMergeProtectedKeepsBoth(t *testing.T) {
	f := newFixture(t)
	f.status.Insert(
		models.Row{"name": "closed", "display_name": "Closed"},
		models.Row{"name": "done", "display_name": "Done"},
	)
	f.status.Protect(models.Row{"name": "closed"})

	p, err := f.run(t, WithUniqueFieldData(UniqueFieldData{
		"app.Status": {"name": {Old: "closed", New: "done"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Summary().Skipped)
	assert.Len(t, f.status.Rows(), 2)
}

func TestUniqueFieldNewExistsOldMissing(t *testing.T) {
	f := newFixture(t)
	f.status.Insert(models.Row{"name": "done"})

	_, err := f.run(t, WithUniqueFieldData(UniqueFieldData{
		"app.Status": {"name": {Old: "closed", New: "done"}},
	}))
	require.NoError(t, err)
	assert.Len(t, f.status.Rows(), 1)
	assert.Empty(t, f.out.String())
}

func TestUniqueFieldReportsMissingAndAmbiguous(t *testing.T) {
	f := newFixture(t)
	f.site.Insert(
		models.Row{"name": "dup", "domain": "a.org"},
		models.Row{"name": "dup", "domain": "b.org"},
	)

	p, err := f.run(t, WithUniqueFieldData(UniqueFieldData{
		"app.Status": {"name": {Old: "ghost", New: "spirit"}},
		"sites.Site": {"name": {Old: "dup", New: "single"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, p.Summary().Reported)

	lines := strings.Split(strings.TrimSpace(f.out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ERROR: Status matching query does not exist.", lines[0])
	assert.Equal(t, "ERROR: get() returned more than one Site -- it returned 2!", lines[1])

	for _, row := range f.site.Rows() {
		assert.Equal(t, "dup", row["name"])
	}
}

func TestPassOrder(t *testing.T) {
	f := newFixture(t)

	// The rename runs after the list pass has created "closed".
	_, err := f.run(t,
		WithListData(ListData{"app.Status": {{"closed", "Closed"}}}),
		WithUniqueFieldData(UniqueFieldData{"app.Status": {"name": {Old: "closed", New: "done"}}}),
	)
	require.NoError(t, err)

	rows := f.status.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "done", rows[0]["name"])
}

func TestDefaultRegistry(t *testing.T) {
	m := models.NewMemoryModel(models.Descriptor{
		Label:  "defaulttest.Color",
		Table:  "colors",
		Fields: []models.Field{{Name: "name", Unique: true}},
	})
	if err := models.Register(m); err != nil {
		existing, err := models.DefaultRegistry.GetModel("defaulttest.Color")
		require.NoError(t, err)
		m = existing.(*models.MemoryModel)
	}

	_, err := New(context.Background(), WithListData(ListData{"defaulttest.Color": {{"red", "Red"}}}))
	require.NoError(t, err)
	assert.Len(t, m.Rows(), 1)
}

func TestEmptyInputsDoNothing(t *testing.T) {
	p, err := New(context.Background(), WithApps(models.NewRegistry()))
	require.NoError(t, err)
	assert.Equal(t, Summary{}, p.Summary())
}

type recordingModel struct {
	*models.MemoryModel
	created *[]string
}

func (m recordingModel) Create(ctx context.Context, fields models.Row) error {
	*m.created = append(*m.created, m.Descriptor().Label)
	return m.MemoryModel.Create(ctx, fields)
}

func TestModelDataFollowsReferences(t *testing.T) {
	var created []string
	apps := models.NewRegistry()
	for _, desc := range []models.Descriptor{
		{Label: "a.Order", Table: "shop_order", References: []string{"shop_customer", "shop_product"}},
		{Label: "b.Product", Table: "shop_product", References: []string{"shop_category"}},
		{Label: "c.Customer", Table: "shop_customer"},
		{Label: "d.Category", Table: "shop_category"},
	} {
		desc.Fields = []models.Field{{Name: "code", Unique: true}}
		require.NoError(t, apps.Register(recordingModel{models.NewMemoryModel(desc), &created}))
	}

	row := func() []models.Row { return []models.Row{{"code": "x"}} }
	_, err := New(context.Background(), WithApps(apps), WithModelData(ModelData{
		{Model: "a.Order"}:    row(),
		{Model: "b.Product"}:  row(),
		{Model: "c.Customer"}: row(),
		{Model: "d.Category"}: row(),
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"d.Category", "b.Product", "c.Customer", "a.Order"}, created)
}
