package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed mysql/*.sql clickhouse/*.sql
var files embed.FS

// Script is one migration file.
type Script struct {
	Name string
	SQL  string
}

// MySQL returns the MySQL scripts in apply order.
func MySQL() ([]Script, error) { return load("mysql") }

// ClickHouse returns the ClickHouse scripts in apply order. Each entry holds one statement,
// since the clickhouse driver rejects multi-statement execs.
func ClickHouse() ([]Script, error) {
	scripts, err := load("clickhouse")
	if err != nil {
		return nil, err
	}
	var out []Script
	for _, s := range scripts {
		for _, stmt := range strings.Split(s.SQL, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			out = append(out, Script{Name: s.Name, SQL: stmt})
		}
	}
	return out, nil
}

func load(dir string) ([]Script, error) {
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []Script
	for _, e := range entries {
		b, err := fs.ReadFile(files, dir+"/"+e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, Script{Name: e.Name(), SQL: string(b)})
	}
	return out, nil
}
