// padron_watch loads padron CSV files dropped into a directory. It scans the
// directory on startup, then optionally keeps watching (debounced) so an
// operator can keep dropping files while it runs. Processed files move to
// procesados/, rejected ones to errores/, so a crash mid-run never reprocesses
// or loses input.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"emisor/models"
	"emisor/pkg/padron"
)

var verbose bool

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

func mustInitDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatalf("DB_DSN must be set in environment to run this tool")
	}
	var gdb *gorm.DB
	var err error
	if path, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		gdb, err = gorm.Open(sqlite.Open(path), &gorm.Config{})
	} else {
		gdb, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}

// loader binds one project's padron table for the life of the process.
type loader struct {
	mgr     *padron.Manager
	project models.Project
	schema  padron.Schema
	merge   bool
	dryRun  bool
}

func main() {
	dirFlag := flag.String("dir", "padron_inbox", "directory to scan for padron CSV files")
	projectID := flag.Uint("project", 0, "project id whose padron receives the rows")
	merge := flag.Bool("merge", false, "refresh existing accounts instead of skipping them")
	watch := flag.Bool("watch", false, "keep watching the directory for new files")
	dryRun := flag.Bool("dry-run", false, "parse and validate files without touching the database")
	flag.BoolVar(&verbose, "verbose", false, "verbose per-file logging")
	flag.Parse()

	if *projectID == 0 {
		log.Fatalf("-project is required")
	}

	db := mustInitDBFromEnv()
	var project models.Project
	if err := db.Where("id = ? AND deleted = ?", *projectID, false).First(&project).Error; err != nil {
		log.Fatalf("project %d not found: %v", *projectID, err)
	}
	schema := make(padron.Schema, 0, len(project.PadronSchema))
	for _, c := range project.PadronSchema {
		schema = append(schema, padron.Column{Name: c.Name, Type: c.Type, Required: c.Required, Unique: c.Unique})
	}
	ld := &loader{
		mgr:     padron.NewManager(db),
		project: project,
		schema:  schema,
		merge:   *merge,
		dryRun:  *dryRun,
	}
	if !ld.mgr.TableExists(project.PadronTable) {
		log.Fatalf("padron table %s does not exist", project.PadronTable)
	}

	files := listCSVFiles(*dirFlag)
	log.Printf("Found %d pending files in %s", len(files), *dirFlag)
	for _, name := range files {
		ld.processFile(*dirFlag, name)
	}

	if !*watch {
		return
	}
	if err := watchDirectory(*dirFlag, ld); err != nil {
		log.Fatalf("watch failed: %v", err)
	}
}

func listCSVFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("read dir %s: %v", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isCSV(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func isCSV(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == ".csv"
}

// processFile loads one dropped file and moves it out of the inbox. Row-level
// failures reject the whole file; the counts already applied are logged since
// the load is not transactional.
func (ld *loader) processFile(dir, name string) {
	path := filepath.Join(dir, name)
	f, err := os.Open(path)
	if err != nil {
		log.Printf("open %s: %v", name, err)
		return
	}
	rows, err := padron.ParseCSV(f, ld.schema)
	f.Close()
	if err != nil {
		log.Printf("REJECT %s: %v", name, err)
		moveTo(dir, name, "errores")
		return
	}
	if ld.dryRun {
		log.Printf("dry-run %s: %d valid rows", name, len(rows))
		return
	}
	result, err := ld.mgr.LoadRows(ld.project.PadronTable, rows, ld.merge)
	if err != nil {
		log.Printf("REJECT %s after %d inserted / %d updated: %v", name, result.Inserted, result.Updated, err)
		moveTo(dir, name, "errores")
		return
	}
	log.Printf("loaded %s: %d inserted, %d updated of %d rows", name, result.Inserted, result.Updated, len(rows))
	moveTo(dir, name, "procesados")
}

// moveTo relocates a handled file into a sibling subdirectory, timestamping
// the name on collision.
func moveTo(dir, name, sub string) {
	dest := filepath.Join(dir, sub)
	if err := os.MkdirAll(dest, 0755); err != nil {
		log.Printf("mkdir %s: %v", dest, err)
		return
	}
	target := filepath.Join(dest, name)
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(dest, fmt.Sprintf("%d_%s", time.Now().Unix(), name))
	}
	if err := os.Rename(filepath.Join(dir, name), target); err != nil {
		log.Printf("move %s: %v", name, err)
		return
	}
	logV("moved %s to %s", name, sub)
}

func watchDirectory(dir string, ld *loader) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	fileCh := make(chan string, 256)
	go func() {
		// simple debounce map of pending files
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					close(fileCh)
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					name := filepath.Base(ev.Name)
					if !isCSV(name) {
						continue
					}
					pending[name] = time.Now()
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 300*time.Millisecond { // stable
						fileCh <- name
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					close(fileCh)
					return
				}
				log.Printf("watch error: %v", err)
			}
		}
	}()

	// files load sequentially: the padron table is one shared target and
	// interleaved merges of two drops would be order-dependent
	for name := range fileCh {
		ld.processFile(dir, name)
	}
	return nil
}
