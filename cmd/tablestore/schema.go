package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	store "github.com/likearthian/tablestore"
)

// usersSchema is the table the demo runs against when no schema file is given.
func usersSchema() store.Schema {
	return store.Schema{Tables: []store.TableDef{{
		Name: "users",
		Columns: []store.ColumnDef{
			{Name: "id", DataType: "serial", PrimaryKey: true},
			{Name: "name", DataType: "varchar", Length: 100, Nullable: store.Bool(false)},
			{Name: "email", DataType: "varchar", Length: 100, Unique: true},
		},
	}}}
}

// loadSchema reads a YAML or JSON schema descriptor:
//
//	tables:
//	  - name: users
//	    columns:
//	      - {name: id, data_type: serial, primary_key: true}
//	      - {name: email, data_type: varchar, length: 100, unique: true}
func loadSchema(path string) (store.Schema, error) {
	var s store.Schema

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read schema file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}

	if len(s.Tables) == 0 {
		return s, fmt.Errorf("schema file %s declares no tables", path)
	}

	return s, s.Validate()
}
