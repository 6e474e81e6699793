package padron

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func testSchema() Schema {
	return Schema{
		{Name: "cuenta", Type: "VARCHAR(50)", Required: true, Unique: true},
		{Name: "nombre", Type: "VARCHAR(255)", Required: true},
		{Name: "monto_adeudo", Type: "NUMERIC(12,2)"},
		{Name: "direccion", Type: "TEXT"},
	}
}

func TestSanitizeIdentifiers(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Monto Adeudo", "monto_adeudo"},
		{"año-fiscal", "a_o_fiscal"},
		{"2024_periodo", "c_2024_periodo"},
		{"CUENTA", "cuenta"},
	}
	for _, c := range cases {
		if got := SanitizeColumnName(c.in); got != c.want {
			t.Fatalf("SanitizeColumnName(%q)=%q want %q", c.in, got, c.want)
		}
	}
	long := strings.Repeat("x", 100)
	if got := SanitizeTableName(long); len(got) != 63 {
		t.Fatalf("expected 63-byte truncation, got %d", len(got))
	}
	if got := SanitizeTableName("9lives"); got != "t_9lives" {
		t.Fatalf("digit prefix: got %q", got)
	}
}

func TestSchemaValidate(t *testing.T) {
	if err := testSchema().Validate(); err != nil {
		t.Fatalf("valid schema rejected: %v", err)
	}
	bad := Schema{{Name: "cuenta", Type: "VARCHAR(50); DROP TABLE users", Unique: true}, {Name: "nombre", Type: "TEXT"}}
	if err := bad.Validate(); err == nil {
		t.Fatal("injection-shaped type accepted")
	}
	noUnique := Schema{{Name: "cuenta", Type: "VARCHAR(50)"}, {Name: "nombre", Type: "TEXT"}}
	if err := noUnique.Validate(); err == nil {
		t.Fatal("non-unique cuenta accepted")
	}
	missing := Schema{{Name: "cuenta", Type: "VARCHAR(50)", Unique: true}}
	if err := missing.Validate(); err == nil {
		t.Fatal("schema without nombre accepted")
	}
}

func TestCreateLoadAndDescribe(t *testing.T) {
	m := NewManager(testDB(t))
	table, err := m.CreateTable("6f1aab6e-0000-0000-0000-000000000000", testSchema())
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	if table != "padron_6f1aab6e" {
		t.Fatalf("unexpected table name %q", table)
	}
	if !m.TableExists(table) {
		t.Fatal("table should exist")
	}

	rows := []map[string]string{
		{"cuenta": "C-001", "nombre": "Juan Perez", "monto_adeudo": "1500.50"},
		{"cuenta": "C-002", "nombre": "Maria Lopez", "monto_adeudo": "0"},
	}
	res, err := m.LoadRows(table, rows, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Inserted != 2 || res.Updated != 0 {
		t.Fatalf("expected 2 inserts got %+v", res)
	}

	cols, err := m.Describe(table)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if len(cols) != 4 {
		t.Fatalf("expected 4 declared columns got %d (%+v)", len(cols), cols)
	}
	for _, c := range cols {
		if c.Name == "id" || c.Name == "is_deleted" {
			t.Fatalf("system column %s leaked into describe", c.Name)
		}
	}

	sample, err := m.Sample(table, 10)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(sample) != 2 {
		t.Fatalf("expected 2 sample rows got %d", len(sample))
	}
}

func TestMergeIsIdempotentAndRefreshesUpdatedAt(t *testing.T) {
	db := testDB(t)
	m := NewManager(db)
	table, err := m.CreateTable("11112222-0000-0000-0000-000000000000", testSchema())
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	rows := []map[string]string{{"cuenta": "C-001", "nombre": "Juan Perez"}}
	if _, err := m.LoadRows(table, rows, true); err != nil {
		t.Fatalf("first load: %v", err)
	}
	var before string
	db.Table(table).Select("updated_at").Where("cuenta = ?", "C-001").Scan(&before)

	res, err := m.LoadRows(table, rows, true)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if res.Inserted != 0 || res.Updated != 1 {
		t.Fatalf("expected pure update got %+v", res)
	}
	var count int64
	db.Table(table).Count(&count)
	if count != 1 {
		t.Fatalf("merge duplicated rows: count=%d", count)
	}
	var after string
	db.Table(table).Select("updated_at").Where("cuenta = ?", "C-001").Scan(&after)
	if after == before {
		t.Fatalf("updated_at did not advance (%s)", after)
	}
}

func TestNonMergeSkipsConflicts(t *testing.T) {
	db := testDB(t)
	m := NewManager(db)
	table, err := m.CreateTable("33334444-0000-0000-0000-000000000000", testSchema())
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	rows := []map[string]string{{"cuenta": "C-001", "nombre": "Juan Perez"}}
	if _, err := m.LoadRows(table, rows, false); err != nil {
		t.Fatalf("first load: %v", err)
	}
	res, err := m.LoadRows(table, rows, false)
	if err != nil {
		t.Fatalf("conflicting insert should be skipped, not errored: %v", err)
	}
	if res.Inserted != 0 {
		t.Fatalf("conflict counted as insert: %+v", res)
	}
	var count int64
	db.Table(table).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 row got %d", count)
	}
}

func TestFindByAccounts(t *testing.T) {
	m := NewManager(testDB(t))
	table, _ := m.CreateTable("55556666-0000-0000-0000-000000000000", testSchema())
	var rows []map[string]string
	for i := 1; i <= 5; i++ {
		rows = append(rows, map[string]string{"cuenta": fmt.Sprintf("C-%03d", i), "nombre": "X"})
	}
	if _, err := m.LoadRows(table, rows, true); err != nil {
		t.Fatalf("load: %v", err)
	}
	found, err := m.FindByAccounts(table, []string{"C-001", "C-003", "C-999"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 matches got %d", len(found))
	}
}

func TestDropTable(t *testing.T) {
	m := NewManager(testDB(t))
	table, _ := m.CreateTable("77778888-0000-0000-0000-000000000000", testSchema())
	if ok := m.DropTable(table); !ok {
		t.Fatal("drop reported failure")
	}
	if m.TableExists(table) {
		t.Fatal("table still exists after drop")
	}
}
