package types

// SchemaColumn is a column as reported by the database, in declared order.
type SchemaColumn struct {
	Name             string
	IsPrimary        bool // part of the primary key, which may span several columns
	IsUnique         bool // single-column unique constraint or index
	IsAutoIncrement  bool
	ForeignKeyTable  string
	ForeignKeyColumn string
	OnDeleteAction   string
}
