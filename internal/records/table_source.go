package records

import (
	"fmt"

	"gorm.io/gorm"
)

// TableSource is a gorm-backed Source projecting one database table.
type TableSource struct {
	db          *gorm.DB
	model       string
	table       string
	nameField   string
	parentField string
}

// NewTableSource creates a source for model backed by table.
// nameField defaults to "name"; parentField may be empty for flat
// models.
func NewTableSource(db *gorm.DB, model, table, nameField, parentField string) *TableSource {
	if nameField == "" {
		nameField = "name"
	}
	return &TableSource{
		db:          db,
		model:       model,
		table:       table,
		nameField:   nameField,
		parentField: parentField,
	}
}

// Model returns the model identifier.
func (s *TableSource) Model() string { return s.model }

// NameField returns the display-name column.
func (s *TableSource) NameField() string { return s.nameField }

// ParentField returns the parent-id column, or empty.
func (s *TableSource) ParentField() string { return s.parentField }

// Search returns all records matching the conditions, ordered by id
// for a stable result within a call.
func (s *TableSource) Search(conds []Condition) ([]Record, error) {
	query := s.db.Table(s.table)
	for _, c := range conds {
		clause, arg, err := BuildClause(c)
		if err != nil {
			return nil, err
		}
		if arg == nil {
			query = query.Where(clause)
		} else {
			query = query.Where(clause, arg)
		}
	}

	var rows []map[string]interface{}
	if err := query.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("search on %s failed: %w", s.model, err)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.toRecord(row))
	}
	return out, nil
}

// ByID returns one record or nil when absent.
func (s *TableSource) ByID(id uint) (*Record, error) {
	var rows []map[string]interface{}
	if err := s.db.Table(s.table).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("lookup on %s failed: %w", s.model, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := s.toRecord(rows[0])
	return &rec, nil
}

func (s *TableSource) toRecord(row map[string]interface{}) Record {
	rec := Record{Fields: row}
	rec.ID = asUint(row["id"])
	if name, ok := row[s.nameField].(string); ok {
		rec.Name = name
	}
	if s.parentField != "" {
		if pid := asUint(row[s.parentField]); pid != 0 {
			rec.ParentID = &pid
		}
	}
	return rec
}

// BuildClause translates one condition into a SQL fragment and its
// bind argument (nil for the IS NULL forms).
func BuildClause(c Condition) (string, interface{}, error) {
	switch c.Op {
	case "=", "!=", ">", ">=", "<", "<=":
		if c.Value == nil {
			if c.Op == "=" {
				return fmt.Sprintf("%s IS NULL", c.Field), nil, nil
			}
			if c.Op == "!=" {
				return fmt.Sprintf("%s IS NOT NULL", c.Field), nil, nil
			}
			return "", nil, fmt.Errorf("operator %q cannot compare against null", c.Op)
		}
		return fmt.Sprintf("%s %s ?", c.Field, c.Op), c.Value, nil
	case "like", "ilike":
		return fmt.Sprintf("%s LIKE ?", c.Field), fmt.Sprintf("%%%v%%", c.Value), nil
	case "in":
		return fmt.Sprintf("%s IN ?", c.Field), c.Value, nil
	default:
		return "", nil, fmt.Errorf("unsupported domain operator %q", c.Op)
	}
}

// asUint normalizes the numeric types the sql drivers hand back.
func asUint(v interface{}) uint {
	switch n := v.(type) {
	case int64:
		return uint(n)
	case int32:
		return uint(n)
	case int:
		return uint(n)
	case uint64:
		return uint(n)
	case uint:
		return n
	case float64:
		return uint(n)
	case []byte:
		var out uint
		fmt.Sscanf(string(n), "%d", &out)
		return out
	default:
		return 0
	}
}
