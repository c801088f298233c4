package specification

// StorageType defines how a collection is stored
type StorageType int

const (
	// StorageEmbedded means collection is stored as JSONB/array in parent table
	StorageEmbedded StorageType = iota
	// StorageRelational means collection is stored in a separate table
	StorageRelational
)

// ForeignKeyPair maps a child column to the parent column it references.
type ForeignKeyPair struct {
	ChildColumn  string // e.g. "team_id"
	ParentColumn string // e.g. "id"
}

type CollectionMapping struct {
	Storage StorageType

	// Table is the child table, StorageRelational only.
	Table string

	// ForeignKeys lists one pair per key column; composite keys have several.
	ForeignKeys []ForeignKeyPair

	// Alias prefixes the generated subquery alias. Defaults to the
	// singularised collection name.
	Alias string
}

// SchemaRegistry describes the collections reachable from one parent table,
// e.g. the members of a team.
type SchemaRegistry struct {
	ParentTable string
	ParentAlias string

	collections map[string]CollectionMapping
}

func NewSchemaRegistry(parentTable string) *SchemaRegistry {
	return &SchemaRegistry{
		ParentTable: parentTable,
		collections: make(map[string]CollectionMapping),
	}
}

func (r *SchemaRegistry) WithParentAlias(alias string) *SchemaRegistry {
	r.ParentAlias = alias
	return r
}

func (r *SchemaRegistry) RegisterEmbedded(fieldName string) *SchemaRegistry {
	r.collections[fieldName] = CollectionMapping{
		Storage: StorageEmbedded,
	}
	return r
}

// RegisterRelational registers a one-to-many back-reference with a single
// column foreign key.
func (r *SchemaRegistry) RegisterRelational(fieldName, table, childColumn, parentColumn string) *SchemaRegistry {
	return r.Register(fieldName, CollectionMapping{
		Storage: StorageRelational,
		Table:   table,
		ForeignKeys: []ForeignKeyPair{
			{ChildColumn: childColumn, ParentColumn: parentColumn},
		},
	})
}

func (r *SchemaRegistry) Register(fieldName string, mapping CollectionMapping) *SchemaRegistry {
	r.collections[fieldName] = mapping
	return r
}

func (r *SchemaRegistry) Get(fieldName string) (CollectionMapping, bool) {
	mapping, ok := r.collections[fieldName]
	return mapping, ok
}

// IsRelational reports whether fieldName is stored in a separate table.
// Unregistered collections are treated as embedded.
func (r *SchemaRegistry) IsRelational(fieldName string) bool {
	mapping, ok := r.collections[fieldName]
	return ok && mapping.Storage == StorageRelational
}

// GetParentRef returns the alias of the parent table, or its name when no
// alias is set.
func (r *SchemaRegistry) GetParentRef() string {
	if r.ParentAlias != "" {
		return r.ParentAlias
	}
	return r.ParentTable
}
