package preload

import (
	"fmt"
	"sort"

	"github.com/Lumos-Labs-HQ/preload/internal/models"
)

// Choice is one entry of a list model: the stored code and its label.
type Choice struct {
	Name        string
	DisplayName string
}

// ListData maps a model label to its choices in display order.
type ListData map[string][]Choice

// ModelKey names a model and, optionally, the field used to find existing rows.
type ModelKey struct {
	Model       string
	UniqueField string
}

// ModelData maps a model to the rows it should contain.
type ModelData map[ModelKey][]models.Row

// Rename moves a unique field from Old to New.
type Rename struct {
	Old any
	New any
}

// UniqueFieldData maps a model label to field renames.
type UniqueFieldData map[string]map[string]Rename

// ListFields names the columns of a list model.
type ListFields struct {
	Name         string
	DisplayName  string
	DisplayIndex string
}

var DefaultListFields = ListFields{
	Name:         "name",
	DisplayName:  "display_name",
	DisplayIndex: "display_index",
}

// Summary counts what a run did.
type Summary struct {
	Created  int
	Updated  int
	Renamed  int
	Deleted  int
	Skipped  int
	Reported int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d created, %d updated, %d renamed, %d deleted, %d skipped, %d reported",
		s.Created, s.Updated, s.Renamed, s.Deleted, s.Skipped, s.Reported)
}

// PreloadDataError is returned when the list pass cannot resolve a model.
type PreloadDataError struct {
	Message string
	Data    []Choice
	Err     error
}

func (e *PreloadDataError) Error() string {
	return fmt.Sprintf("%s See %v.", e.Message, e.Data)
}

func (e *PreloadDataError) Unwrap() error { return e.Err }

func (l ListData) labels() []string {
	out := make([]string, 0, len(l))
	for k := range l {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (d ModelData) keys() []ModelKey {
	out := make([]ModelKey, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].UniqueField < out[j].UniqueField
	})
	return out
}

func (u UniqueFieldData) labels() []string {
	out := make([]string, 0, len(u))
	for k := range u {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedFields(m map[string]Rename) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
