// Package migrations embeds the SQL schema files so posctl can apply them
// without a checkout of the repo.
package migrations

import (
	"embed"
	"sort"
)

//go:embed *.sql
var FS embed.FS

// Files returns the migration filenames in apply order.
func Files() ([]string, error) {
	entries, err := FS.ReadDir(".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
