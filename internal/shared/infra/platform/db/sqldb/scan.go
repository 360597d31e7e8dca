package sqldb

import (
	"database/sql"
	"fmt"
	"time"
)

var timeLayouts = []string{
	TimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// timeScanner lee fechas tanto de columnas temporales nativas como de texto.
type timeScanner struct {
	dest *time.Time
	null **time.Time
}

// ScanTime adapta un *time.Time como destino de Scan.
func ScanTime(dest *time.Time) sql.Scanner {
	return &timeScanner{dest: dest}
}

// ScanNullTime adapta un **time.Time (nil si la columna es NULL).
func ScanNullTime(dest **time.Time) sql.Scanner {
	return &timeScanner{null: dest}
}

func (s *timeScanner) Scan(src interface{}) error {
	var t time.Time
	switch v := src.(type) {
	case nil:
		if s.null != nil {
			*s.null = nil
			return nil
		}
		return fmt.Errorf("sqldb: NULL time")
	case time.Time:
		t = v
	case string:
		parsed, err := parseTime(v)
		if err != nil {
			return err
		}
		t = parsed
	case []byte:
		parsed, err := parseTime(string(v))
		if err != nil {
			return err
		}
		t = parsed
	default:
		return fmt.Errorf("sqldb: cannot scan %T into time", src)
	}

	t = t.UTC()
	if s.null != nil {
		*s.null = &t
		return nil
	}
	*s.dest = t
	return nil
}

func parseTime(v string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("sqldb: unparseable time %q", v)
}
