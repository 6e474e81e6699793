// Command emitir runs one emission from the command line: it reads the input
// CSV, renders the PDFs and prints the run summary as JSON. Useful for large
// batches that should not go through the HTTP layer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"emisor/models"
	"emisor/pkg/emission"
)

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

func main() {
	projectID := flag.Uint("project", 0, "project id")
	templateID := flag.Uint("template", 0, "template id")
	docType := flag.String("doc", "N", "document type code (N, A, E, CI)")
	fecha := flag.String("fecha", "", "emission date YYYY-MM-DD (default today)")
	csvPath := flag.String("csv", "", "input CSV path")
	outBase := flag.String("out", "salidas", "output base directory")
	workers := flag.Int("workers", 0, "worker pool size (default NumCPU)")
	flag.Parse()

	if *projectID == 0 || *templateID == 0 || *csvPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	db := mustInitDBFromEnv()

	var project models.Project
	if err := db.Where("id = ? AND deleted = ?", *projectID, false).First(&project).Error; err != nil {
		log.Fatalf("project %d not found: %v", *projectID, err)
	}
	var template models.Template
	if err := db.Where("id = ? AND deleted = ?", *templateID, false).First(&template).Error; err != nil {
		log.Fatalf("template %d not found: %v", *templateID, err)
	}

	date := time.Now()
	if *fecha != "" {
		t, err := time.Parse("2006-01-02", *fecha)
		if err != nil {
			log.Fatalf("invalid -fecha %q: %v", *fecha, err)
		}
		date = t
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("open %s: %v", *csvPath, err)
	}
	defer f.Close()

	engine, err := emission.New(db, emission.Params{
		Project:    &project,
		Template:   &template,
		DocType:    *docType,
		Date:       date,
		OutputBase: *outBase,
		Workers:    *workers,
	})
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	summary, err := engine.Run(context.Background(), f)
	if err != nil {
		log.Fatalf("run failed (session %s): %v", engine.SessionID(), err)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	os.Stdout.Write(append(out, '\n'))
	if summary.ErrorsTotal > 0 {
		os.Exit(1)
	}
}
