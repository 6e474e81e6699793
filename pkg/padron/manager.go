// Package padron manages the per-project dynamic tables holding the
// authoritative dataset each emission run joins against. Tables are created
// from a declared column list at project creation and only ever mutated by
// the load/merge operation here; the emission engine reads them.
package padron

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Manager executes the dynamic DDL/DML. All identifiers pass through the
// sanitize step before they reach SQL text; all values are bound parameters.
type Manager struct {
	db *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// LoadResult reports how far a load got. On error the counts reflect rows
// already applied: the load is intentionally not transactional across rows so
// very large files never hold one long-lived transaction.
type LoadResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// ColumnInfo describes one declared column of an existing table.
type ColumnInfo struct {
	Name     string `json:"nombre"`
	Type     string `json:"tipo"`
	Nullable bool   `json:"nulo"`
}

// CreateTable materializes the padron table for a project and returns its
// generated name (padron_<uuid8>).
func (m *Manager) CreateTable(projectUUID string, schema Schema) (string, error) {
	if err := schema.Validate(); err != nil {
		return "", err
	}
	suffix := strings.ReplaceAll(projectUUID, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	table := SanitizeTableName("padron_" + suffix)

	sqlite := m.db.Dialector.Name() == "sqlite"
	cols := make([]string, 0, len(schema)+4)
	if sqlite {
		cols = append(cols, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	} else {
		cols = append(cols, "id BIGSERIAL PRIMARY KEY")
	}
	for _, c := range schema {
		def := SanitizeColumnName(c.Name) + " " + strings.ToUpper(strings.TrimSpace(c.Type))
		if c.Required {
			def += " NOT NULL"
		}
		if c.Unique {
			def += " UNIQUE"
		}
		cols = append(cols, def)
	}
	ts := "TIMESTAMPTZ"
	if sqlite {
		ts = "TIMESTAMP"
	}
	cols = append(cols,
		"created_at "+ts+" DEFAULT CURRENT_TIMESTAMP",
		"updated_at "+ts+" DEFAULT CURRENT_TIMESTAMP",
		"is_deleted BOOLEAN DEFAULT FALSE",
	)

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", "))
	if err := m.db.Exec(create).Error; err != nil {
		return "", fmt.Errorf("create padron table: %w", err)
	}
	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_cuenta ON %s(cuenta)", table, table)
	if err := m.db.Exec(index).Error; err != nil {
		return "", fmt.Errorf("create padron index: %w", err)
	}
	log.Printf("padron table created: %s", table)
	return table, nil
}

// DropTable removes a padron table. Advisory: errors are logged and reported
// as false, project deletion proceeds either way.
func (m *Manager) DropTable(table string) bool {
	table = SanitizeTableName(table)
	if err := m.db.Exec("DROP TABLE IF EXISTS " + table).Error; err != nil {
		log.Printf("drop padron table %s failed: %v", table, err)
		return false
	}
	return true
}

// TableExists reports whether the dynamic table is present.
func (m *Manager) TableExists(table string) bool {
	return m.db.Migrator().HasTable(SanitizeTableName(table))
}

// Describe lists the declared columns of an existing table, system columns
// excluded.
func (m *Manager) Describe(table string) ([]ColumnInfo, error) {
	cols, err := m.db.Migrator().ColumnTypes(SanitizeTableName(table))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	var out []ColumnInfo
	for _, c := range cols {
		name := c.Name()
		switch name {
		case "id", "created_at", "updated_at", "is_deleted":
			continue
		}
		nullable, _ := c.Nullable()
		out = append(out, ColumnInfo{Name: name, Type: c.DatabaseTypeName(), Nullable: nullable})
	}
	return out, nil
}

// Sample returns up to limit live rows for preview.
func (m *Manager) Sample(table string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []map[string]any
	err := m.db.Table(SanitizeTableName(table)).
		Where("is_deleted = ?", false).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", table, err)
	}
	return rows, nil
}

// FindByAccounts returns the live rows whose cuenta is in cuentas. This is the
// read-only join the emission engine runs; it never writes here.
func (m *Manager) FindByAccounts(table string, cuentas []string) ([]map[string]any, error) {
	if len(cuentas) == 0 {
		return nil, nil
	}
	var rows []map[string]any
	err := m.db.Table(SanitizeTableName(table)).
		Where("cuenta IN ?", cuentas).
		Where("is_deleted = ?", false).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("padron lookup on %s: %w", table, err)
	}
	return rows, nil
}

// LoadRows applies rows to the table. merge=true upserts by cuenta (existing
// account updates every supplied column and refreshes updated_at); merge=false
// inserts and silently skips accounts already present. The first row-level
// error aborts the load; rows already applied stay applied.
func (m *Manager) LoadRows(table string, rows []map[string]string, merge bool) (LoadResult, error) {
	var res LoadResult
	if len(rows) == 0 {
		return res, nil
	}
	table = SanitizeTableName(table)

	for i, row := range rows {
		cuenta, ok := row["cuenta"]
		if !ok || strings.TrimSpace(cuenta) == "" {
			return res, fmt.Errorf("row %d: missing cuenta", i+1)
		}
		cols, args := bindRow(row)

		if merge {
			var existing int64
			err := m.db.Table(table).
				Where("cuenta = ?", cuenta).
				Where("is_deleted = ?", false).
				Count(&existing).Error
			if err != nil {
				return res, fmt.Errorf("row %d: lookup: %w", i+1, err)
			}
			if existing > 0 {
				sets := make([]string, len(cols))
				for j, c := range cols {
					sets[j] = c + " = ?"
				}
				update := fmt.Sprintf("UPDATE %s SET %s, updated_at = ? WHERE cuenta = ? AND is_deleted = FALSE",
					table, strings.Join(sets, ", "))
				updateArgs := append(append([]any{}, args...), time.Now().UTC(), cuenta)
				if err := m.db.Exec(update, updateArgs...).Error; err != nil {
					return res, fmt.Errorf("row %d (cuenta %s): update: %w", i+1, cuenta, err)
				}
				res.Updated++
				continue
			}
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)
		if !merge {
			insert += " ON CONFLICT DO NOTHING"
		}
		tx := m.db.Exec(insert, args...)
		if tx.Error != nil {
			return res, fmt.Errorf("row %d (cuenta %s): insert: %w", i+1, cuenta, tx.Error)
		}
		if tx.RowsAffected > 0 {
			res.Inserted++
		}
	}
	log.Printf("padron load on %s: %d inserted, %d updated", table, res.Inserted, res.Updated)
	return res, nil
}

// bindRow sanitizes the row's column names and returns them with their values
// in a stable order.
func bindRow(row map[string]string) (cols []string, args []any) {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cols = append(cols, SanitizeColumnName(k))
		args = append(args, row[k])
	}
	return cols, args
}
