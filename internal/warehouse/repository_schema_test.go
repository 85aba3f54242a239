package warehouse

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-commerce/meridian/migrations"
)

// The mock repository never executes SQL, so column names in the pgx
// repository can silently drift from the migration DDL. This test pins the
// repository's column lists against the embedded schema.
func TestRepositoryColumnsMatchSchema(t *testing.T) {
	ddl, err := migrations.FS.ReadFile("000001_init.up.sql")
	require.NoError(t, err)

	cases := []struct {
		table   string
		columns string
	}{
		{"inventory_items", itemColumns},
		{"stock_documents", documentColumns},
		{"stock_movements", "product_id, warehouse_id, qty_delta, reason, ref_type, ref_id, note, created_by, occurred_at"},
		{"stock_document_lines", "document_id, product_id, product_name, qty, unit_cost"},
		{"warehouses", warehouseColumns},
	}
	for _, tc := range cases {
		t.Run(tc.table, func(t *testing.T) {
			defined := tableColumns(t, string(ddl), tc.table)
			for _, col := range referencedColumns(tc.columns) {
				require.Containsf(t, defined, col, "column %q referenced by repository is missing from table %q", col, tc.table)
			}
		})
	}
}

// tableColumns extracts the column names declared in a CREATE TABLE block.
func tableColumns(t *testing.T, ddl, table string) []string {
	t.Helper()
	start := strings.Index(ddl, "CREATE TABLE "+table+" (")
	require.GreaterOrEqualf(t, start, 0, "no CREATE TABLE for %q", table)
	body := ddl[start:]
	end := strings.Index(body, "\n);")
	require.GreaterOrEqual(t, end, 0)

	var cols []string
	for _, line := range strings.Split(body[:end], "\n")[1:] {
		line = strings.TrimSpace(line)
		first, _, _ := strings.Cut(line, " ")
		switch strings.ToUpper(first) {
		case "", "UNIQUE", "CHECK", "PRIMARY", "FOREIGN", "CONSTRAINT", "--":
			continue
		}
		cols = append(cols, first)
	}
	return cols
}

var identPattern = regexp.MustCompile(`^[a-z_]+$`)

// referencedColumns reduces a SELECT/INSERT column list to bare column names,
// dropping COALESCE wrappers and their default arguments.
func referencedColumns(list string) []string {
	var cols []string
	for _, raw := range strings.Split(list, ",") {
		tok := strings.TrimSpace(raw)
		tok = strings.TrimPrefix(tok, "COALESCE(")
		if identPattern.MatchString(tok) {
			cols = append(cols, tok)
		}
	}
	return cols
}
