// Package migrations embeds the relational schema used by the postgres
// repositories.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Up returns the forward migrations in apply order.
func Up() ([]Migration, error) {
	return load(".up.sql")
}

// Down returns the reverse migrations, newest first.
func Down() ([]Migration, error) {
	ms, err := load(".down.sql")
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
		ms[i], ms[j] = ms[j], ms[i]
	}
	return ms, nil
}

// Migration is one SQL file.
type Migration struct {
	Name string
	SQL  string
}

func load(suffix string) ([]Migration, error) {
	names, err := fs.Glob(files, "*"+suffix)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	ms := make([]Migration, 0, len(names))
	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		ms = append(ms, Migration{Name: strings.TrimSuffix(name, suffix), SQL: string(body)})
	}
	return ms, nil
}
