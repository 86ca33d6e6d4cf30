package store

import (
	"reflect"
	"time"

	"github.com/iancoleman/strcase"
)

// Model lets a type declare its table definition directly.
type Model interface {
	GetTableDef() TableDef
}

// Tabler overrides the table name derived from a struct type.
type Tabler interface {
	TableName() string
}

// DBTable is an optional marker field naming the table of a struct:
//
//	type User struct {
//		store.DBTable `schema:"public" name:"users"`
//		ID    int64  `db:"id,key auto"`
//		Name  string `db:"name,size=100"`
//		Email string `db:"email,size=100 unique allownull"`
//	}
type DBTable struct{}

var (
	timeType    = reflect.TypeOf(time.Time{})
	modelType   = reflect.TypeOf((*Model)(nil)).Elem()
	dbTableType = reflect.TypeOf(DBTable{})
)

// SchemaFromModel derives a Schema from tagged structs, in argument order.
func SchemaFromModel(models ...any) (Schema, error) {
	var s Schema
	for _, m := range models {
		td, err := TableDefFromModel(m)
		if err != nil {
			return s, err
		}
		s.Tables = append(s.Tables, td)
	}

	return s, s.Validate()
}

// TableDefFromModel derives the definition of one table. Untagged fields are named in
// snake case; `db:"-"` skips a field.
func TableDefFromModel(model any) (TableDef, error) {
	const op = "parse model"

	if m, ok := model.(Model); ok {
		return m.GetTableDef(), nil
	}

	mtype := reflect.TypeOf(model)
	if mtype == nil {
		return TableDef{}, validationErrorf(op, "", "model is nil")
	}
	if mtype.Kind() == reflect.Ptr {
		mtype = mtype.Elem()
	}
	if mtype.Kind() != reflect.Struct {
		return TableDef{}, validationErrorf(op, "", "model must be a struct, got %s", mtype.Kind())
	}

	td := TableDef{Name: strcase.ToSnake(mtype.Name())}
	if t, ok := model.(Tabler); ok {
		td.Name = t.TableName()
	}

	for i := 0; i < mtype.NumField(); i++ {
		field := mtype.Field(i)
		if field.Type == dbTableType {
			td.Namespace = field.Tag.Get("schema")
			if name := field.Tag.Get("name"); name != "" {
				td.Name = name
			}
			continue
		}

		if !field.IsExported() {
			continue
		}

		tag := parseDBTag(field.Tag.Get("db"))
		if tag.skip {
			continue
		}

		name := tag.name
		if name == "" {
			name = strcase.ToSnake(field.Name)
		}

		ftype := field.Type
		nullable := tag.allowNull
		if ftype.Kind() == reflect.Ptr {
			ftype = ftype.Elem()
			nullable = !tag.isKey
		}

		dataType := tag.dataType
		if dataType == "" {
			var isNull bool
			dataType, isNull = columnTypeFromGo(ftype, tag)
			if dataType == "" {
				return td, validationErrorf(op, td.Name, "unsupported Go type %s for field %s", field.Type, field.Name)
			}
			nullable = nullable || (isNull && !tag.isKey)
		}

		length := 0
		if t, _ := CanonicalType(dataType); t == TypeVarchar || t == TypeChar {
			length = tag.size
		}

		td.Columns = append(td.Columns, ColumnDef{
			Name:       name,
			DataType:   dataType,
			Length:     length,
			Nullable:   Bool(nullable),
			PrimaryKey: tag.isKey,
			Unique:     tag.unique,
		})
	}

	return td, td.Validate()
}

// columnTypeFromGo maps a Go type onto a canonical data type. isNull is set for the
// database/sql Null* wrappers.
func columnTypeFromGo(t reflect.Type, tag dbTag) (dataType string, isNull bool) {
	if t == timeType {
		return TypeTimestampTZ, false
	}

	if t.Implements(modelType) {
		return "", false
	}

	switch t.Kind() {
	case reflect.String:
		if tag.size > 0 {
			return TypeVarchar, false
		}
		return TypeText, false
	case reflect.Int8, reflect.Int16, reflect.Uint8:
		return TypeSmallInt, false
	case reflect.Int, reflect.Int32, reflect.Uint16:
		if tag.isAuto {
			return TypeSerial, false
		}
		return TypeInteger, false
	case reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		if tag.isAuto {
			return TypeBigSerial, false
		}
		return TypeBigInt, false
	case reflect.Float32:
		return TypeReal, false
	case reflect.Float64:
		return TypeDouble, false
	case reflect.Bool:
		return TypeBoolean, false
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return TypeBytea, false
		}
	case reflect.Struct:
		switch t.Name() {
		case "NullString":
			if tag.size > 0 {
				return TypeVarchar, true
			}
			return TypeText, true
		case "NullInt16", "NullByte":
			return TypeSmallInt, true
		case "NullInt32":
			return TypeInteger, true
		case "NullInt64":
			return TypeBigInt, true
		case "NullFloat64":
			return TypeDouble, true
		case "NullBool":
			return TypeBoolean, true
		case "NullTime":
			return TypeTimestampTZ, true
		}
	}

	return "", false
}
