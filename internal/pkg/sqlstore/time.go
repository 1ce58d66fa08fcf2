package sqlstore

import (
	"fmt"
	"time"
)

// dbTime scans TIMESTAMPTZ values from PostgreSQL and the RFC3339 TEXT
// stored by SQLite.
type dbTime struct {
	t *time.Time
}

func scanTime(t *time.Time) *dbTime { return &dbTime{t: t} }

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d.t = v.UTC()
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	case nil:
		*d.t = time.Time{}
		return nil
	}
	return fmt.Errorf("sqlstore: cannot scan %T into time", src)
}

func (d *dbTime) parse(s string) error {
	t, err := parseRFC3339(s)
	if err != nil {
		return err
	}
	*d.t = t
	return nil
}

func parseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlstore: parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}
