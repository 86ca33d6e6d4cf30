package store

import (
	"fmt"
	"strings"
)

// Canonical column data types accepted in a ColumnDef.
const (
	TypeSerial      = "serial"
	TypeBigSerial   = "bigserial"
	TypeSmallInt    = "smallint"
	TypeInteger     = "integer"
	TypeBigInt      = "bigint"
	TypeReal        = "real"
	TypeDouble      = "double precision"
	TypeNumeric     = "numeric"
	TypeBoolean     = "boolean"
	TypeText        = "text"
	TypeVarchar     = "varchar"
	TypeChar        = "char"
	TypeDate        = "date"
	TypeTimestamp   = "timestamp"
	TypeTimestampTZ = "timestamptz"
	TypeUUID        = "uuid"
	TypeJSONB       = "jsonb"
	TypeBytea       = "bytea"
)

var typeAliases = map[string]string{
	"serial":                      TypeSerial,
	"serial4":                     TypeSerial,
	"bigserial":                   TypeBigSerial,
	"serial8":                     TypeBigSerial,
	"smallint":                    TypeSmallInt,
	"int2":                        TypeSmallInt,
	"integer":                     TypeInteger,
	"int":                         TypeInteger,
	"int4":                        TypeInteger,
	"bigint":                      TypeBigInt,
	"int8":                        TypeBigInt,
	"real":                        TypeReal,
	"float4":                      TypeReal,
	"double precision":            TypeDouble,
	"float8":                      TypeDouble,
	"double":                      TypeDouble,
	"numeric":                     TypeNumeric,
	"decimal":                     TypeNumeric,
	"boolean":                     TypeBoolean,
	"bool":                        TypeBoolean,
	"text":                        TypeText,
	"varchar":                     TypeVarchar,
	"character varying":           TypeVarchar,
	"char":                        TypeChar,
	"character":                   TypeChar,
	"date":                        TypeDate,
	"timestamp":                   TypeTimestamp,
	"timestamptz":                 TypeTimestampTZ,
	"timestamp without time zone": TypeTimestamp,
	"timestamp with time zone":    TypeTimestampTZ,
	"uuid":                        TypeUUID,
	"jsonb":                       TypeJSONB,
	"bytea":                       TypeBytea,
}

// CanonicalType normalises a declared data type. ok is false for unsupported types.
func CanonicalType(dataType string) (string, bool) {
	t, ok := typeAliases[strings.ToLower(strings.Join(strings.Fields(dataType), " "))]
	return t, ok
}

func isSerialType(t string) bool {
	return t == TypeSerial || t == TypeBigSerial
}

func isTextType(t string) bool {
	return t == TypeText || t == TypeVarchar || t == TypeChar
}

// Schema is an ordered set of table definitions. Tables are created in order.
type Schema struct {
	Tables []TableDef `json:"tables" yaml:"tables"`
}

// TableDef describes one table. Namespace is the database schema (Postgres only) and
// defaults to the client's namespace when empty.
type TableDef struct {
	Namespace string      `json:"namespace,omitempty" yaml:"namespace,omitempty" bson:"namespace,omitempty"`
	Name      string      `json:"name" yaml:"name" bson:"name"`
	Columns   []ColumnDef `json:"columns" yaml:"columns" bson:"columns"`
}

// ColumnDef describes one column. A nil Nullable means the column accepts NULL.
type ColumnDef struct {
	Name       string `json:"name" yaml:"name" bson:"name"`
	DataType   string `json:"data_type" yaml:"data_type" bson:"data_type"`
	Length     int    `json:"length,omitempty" yaml:"length,omitempty" bson:"length,omitempty"`
	Nullable   *bool  `json:"nullable,omitempty" yaml:"nullable,omitempty" bson:"nullable,omitempty"`
	PrimaryKey bool   `json:"primary_key,omitempty" yaml:"primary_key,omitempty" bson:"primary_key,omitempty"`
	Unique     bool   `json:"unique,omitempty" yaml:"unique,omitempty" bson:"unique,omitempty"`
}

// Bool returns a pointer to b, for ColumnDef.Nullable.
func Bool(b bool) *bool {
	return &b
}

// IsNullable reports whether the column accepts NULL. Primary key and serial columns
// never do.
func (c ColumnDef) IsNullable() bool {
	if c.PrimaryKey || isSerialType(c.Type()) {
		return false
	}
	return c.Nullable == nil || *c.Nullable
}

// Type returns the canonical data type of the column.
func (c ColumnDef) Type() string {
	t, _ := CanonicalType(c.DataType)
	return t
}

// HasDefault reports whether the backend generates a value when none is given.
func (c ColumnDef) HasDefault() bool {
	return isSerialType(c.Type())
}

func (td TableDef) FullTableName() string {
	if td.Namespace != "" {
		return fmt.Sprintf("%s.%s", td.Namespace, td.Name)
	}
	return td.Name
}

func (td TableDef) ColumnNames() []string {
	return Map(td.Columns, func(c ColumnDef) string { return c.Name })
}

// Column looks up a column by name, case-insensitively.
func (td TableDef) Column(name string) (ColumnDef, bool) {
	for _, c := range td.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// KeyColumns returns the primary key columns in declaration order.
func (td TableDef) KeyColumns() []string {
	var keys []string
	for _, c := range td.Columns {
		if c.PrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// Table looks up a table definition by name.
func (s Schema) Table(name string) (TableDef, bool) {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return TableDef{}, false
}

// Validate checks the descriptor before any DDL is generated.
func (s Schema) Validate() error {
	seen := make(map[string]bool)
	for _, t := range s.Tables {
		key := strings.ToLower(t.FullTableName())
		if seen[key] {
			return validationErrorf("validate schema", t.Name, "table defined more than once")
		}
		seen[key] = true

		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (td TableDef) Validate() error {
	const op = "validate schema"
	if strings.TrimSpace(td.Name) == "" {
		return validationErrorf(op, "", "table name is empty")
	}

	if len(td.Columns) == 0 {
		return validationErrorf(op, td.Name, "table has no columns")
	}

	seen := make(map[string]bool)
	for _, c := range td.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return validationErrorf(op, td.Name, "column name is empty")
		}

		lname := strings.ToLower(c.Name)
		if seen[lname] {
			return validationErrorf(op, td.Name, "column %s defined more than once", c.Name)
		}
		seen[lname] = true

		t, ok := CanonicalType(c.DataType)
		if !ok {
			return validationErrorf(op, td.Name, "column %s has unsupported data type %q", c.Name, c.DataType)
		}

		if c.Length < 0 {
			return validationErrorf(op, td.Name, "column %s has negative length", c.Name)
		}

		if c.Length > 0 && t != TypeVarchar && t != TypeChar {
			return validationErrorf(op, td.Name, "column %s: length applies to varchar and char only", c.Name)
		}

		if c.PrimaryKey && c.Nullable != nil && *c.Nullable {
			return validationErrorf(op, td.Name, "primary key column %s cannot be nullable", c.Name)
		}
	}

	return nil
}
