// cmd/strand/load.go
package main

import (
	"database/sql"
	"fmt"
	"strings"

	"strand/internal/database"
	"strand/internal/value"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// parseFlags turns ["--dsn=foo", "--table=bar"] into {"dsn":"foo","table":"bar"}.
func parseFlags(args []string) map[string]string {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		kv := strings.SplitN(arg[2:], "=", 2)
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		} else {
			out[kv[0]] = ""
		}
	}
	return out
}

// driverForDSN picks the database/sql driver name registered by one of the
// four blank-imported packages above, and the DSN that driver expects, by
// the scheme prefixing dsn.
func driverForDSN(dsn string) (driverName, rest string, err error) {
	switch {
	case strings.HasPrefix(dsn, "mysql://"):
		return "mysql", strings.TrimPrefix(dsn, "mysql://"), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.HasPrefix(dsn, "sqlserver://"):
		return "sqlserver", dsn, nil
	default:
		return "", "", fmt.Errorf("dsn %q has no recognized scheme (mysql://, postgres://, sqlite://, sqlserver://)", dsn)
	}
}

// LoadCommand implements "strand load": open dsn, run query, replay every
// returned row into a freshly created table.
func LoadCommand(args []string) error {
	flags := parseFlags(args)
	dsn, query, tableName := flags["dsn"], flags["query"], flags["table"]
	if dsn == "" || query == "" || tableName == "" {
		return fmt.Errorf("--dsn, --query and --table are required")
	}

	db := database.New()
	n, err := loadInto(db, dsn, query, tableName, flags["key"])
	if err != nil {
		return err
	}
	fmt.Printf("loaded %d row(s) into table %q\n", n, tableName)
	return nil
}

// loadInto runs query against dsn and inserts every row into a new table
// named tableName on db, returning the number of rows inserted.
func loadInto(db *database.Database, dsn, query, tableName, keyColumn string) (int, error) {
	driverName, realDSN, err := driverForDSN(dsn)
	if err != nil {
		return 0, err
	}
	conn, err := sql.Open(driverName, realDSN)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", driverName, err)
	}
	defer conn.Close()
	if err := conn.Ping(); err != nil {
		return 0, fmt.Errorf("ping %s: %w", driverName, err)
	}

	rows, err := conn.Query(query)
	if err != nil {
		return 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	tb, err := db.CreateTable(tableName)
	if err != nil {
		return 0, err
	}
	for _, name := range cols {
		if name == keyColumn {
			continue
		}
		if _, err := tb.CreateColumn(name, value.KindText); err != nil {
			return 0, err
		}
	}
	if keyColumn != "" {
		if _, err := tb.CreateColumn(keyColumn, value.KindText); err != nil {
			return 0, err
		}
		if err := tb.SetKeyColumn(keyColumn); err != nil {
			return 0, err
		}
	}

	dest := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	inserted := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return inserted, err
		}
		key := value.NA()
		if keyColumn != "" {
			for i, name := range cols {
				if name == keyColumn {
					key = toText(dest[i])
				}
			}
		}
		rowID, err := tb.InsertRow(key)
		if err != nil {
			return inserted, err
		}
		for i, name := range cols {
			if name == keyColumn {
				continue
			}
			col, _ := tb.FindColumn(name)
			if err := col.Set(rowID, toText(dest[i])); err != nil {
				return inserted, err
			}
		}
		inserted++
	}
	if err := rows.Err(); err != nil {
		return inserted, err
	}
	return inserted, nil
}

// toText renders any driver-returned value as a Text datum. Loading
// everything as text keeps the column-kind inference simple and uniform
// across the four wire protocols; callers that need typed columns build
// them explicitly through the Database/Table API afterward.
func toText(v interface{}) value.Datum {
	if v == nil {
		return value.NA()
	}
	switch t := v.(type) {
	case []byte:
		return value.FromText(value.TextFromString(string(t)))
	case string:
		return value.FromText(value.TextFromString(t))
	default:
		return value.FromText(value.TextFromString(fmt.Sprintf("%v", t)))
	}
}
