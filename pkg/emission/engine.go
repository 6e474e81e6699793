// Package emission orchestrates one run of the document pipeline: CSV load
// and validation, padron matching, derived-field computation, concurrent
// batch rendering and append-only artifact recording.
//
// The coordinating goroutine does everything up to and including sequence
// resolution sequentially; only rendering fans out. Workers receive jobs with
// every derived value already resolved and never touch sequence state.
package emission

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"emisor/models"
	"emisor/pkg/padron"
	"emisor/pkg/pdfrender"
	"emisor/pkg/textfmt"
)

// batchSize is the fixed dispatch unit handed to the worker pool.
const batchSize = 100

// errPreviewCap bounds the per-record error list returned in the summary.
const errPreviewCap = 50

// Params scopes one run. DocType is the document-type letter code (N, A, E,
// CI); Date is the emission date stamped on artifacts and the output folder.
type Params struct {
	Project  *models.Project
	Template *models.Template
	UserID   uint
	DocType  string
	Date     time.Time
	// OutputBase is the root under which {project}/{YYYYMMDD}/{cuenta}.pdf
	// files are written.
	OutputBase  string
	MaxCSVBytes int64
	// Workers overrides the pool size; zero means available CPU parallelism.
	Workers int
}

// RecordError is one non-fatal per-record failure.
type RecordError struct {
	Cuenta string `json:"cuenta"`
	Line   int    `json:"linea"`
	Error  string `json:"error"`
}

// Summary is returned to the caller after every non-fatal run: a run always
// yields a complete summary even when some records fail.
type Summary struct {
	SessionID      string        `json:"sesion_id"`
	ProjectID      uint          `json:"proyecto_id"`
	TemplateID     uint          `json:"plantilla_id"`
	DocType        string        `json:"documento"`
	PMO            string        `json:"pmo"`
	Date           string        `json:"fecha_emision"`
	TotalRecords   int           `json:"total_registros"`
	Processed      int           `json:"registros_procesados"`
	PDFsGenerated  int           `json:"pdfs_generados"`
	Unmatched      []string      `json:"cuentas_no_encontradas"`
	Errors         []RecordError `json:"errores"`
	ErrorsTotal    int           `json:"errores_total"`
	ElapsedSeconds float64       `json:"tiempo_procesamiento"`
	PDFsPerSecond  float64       `json:"pdfs_por_segundo"`
	OutputPath     string        `json:"ruta_salida"`
	ReportPath     string        `json:"reporte_no_encontradas,omitempty"`
}

// Engine runs one emission session. Create one per run; it is not reusable.
type Engine struct {
	params   Params
	recorder Recorder
	padron   *padron.Manager
	renderer *pdfrender.Renderer
	locale   textfmt.Locale
	session  string
	state    State
}

// New validates the collaborators and mints the session id.
func New(db *gorm.DB, p Params) (*Engine, error) {
	if p.Project == nil {
		return nil, fmt.Errorf("project required")
	}
	if p.Template == nil {
		return nil, fmt.Errorf("template required")
	}
	if p.Template.ProjectID != p.Project.ID {
		return nil, fmt.Errorf("template %d does not belong to project %d", p.Template.ID, p.Project.ID)
	}
	if p.DocType == "" {
		return nil, fmt.Errorf("document type required")
	}
	if p.Date.IsZero() {
		p.Date = time.Now()
	}
	if p.OutputBase == "" {
		p.OutputBase = "salidas"
	}
	e := &Engine{
		params:   p,
		recorder: NewDBRecorder(db),
		padron:   padron.NewManager(db),
		renderer: pdfrender.New(),
		locale:   textfmt.DefaultLocale,
		session:  uuid.NewString(),
		state:    StateCreated,
	}
	log.Printf("emission engine ready: project=%s template=%s session=%s",
		p.Project.Name, p.Template.Name, e.session)
	return e, nil
}

// SessionID returns the generated run identifier.
func (e *Engine) SessionID() string { return e.session }

// State returns the run's current lifecycle state.
func (e *Engine) State() State { return e.state }

// Run executes the whole pipeline from an input CSV. Structural validation
// errors fail the run before any file is written; everything after matching
// accumulates per-record errors and still completes.
func (e *Engine) Run(ctx context.Context, csvInput io.Reader) (*Summary, error) {
	start := time.Now()

	records, err := LoadCSV(csvInput, e.params.MaxCSVBytes)
	if err != nil {
		e.state = StateFailed
		return nil, err
	}
	e.state = StateCSVLoaded
	log.Printf("session %s: CSV loaded, %d records", e.session, len(records))

	matched, unmatched, err := e.match(records)
	if err != nil {
		e.state = StateFailed
		return nil, err
	}
	e.state = StateMatched
	log.Printf("session %s: matched=%d unmatched=%d", e.session, len(matched), len(unmatched))

	jobs, pmoLabel, err := e.resolveJobs(matched)
	if err != nil {
		// store failure during sequence resolution: abort before dispatch
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.state = StateDispatched
	generated, recErrs := e.dispatch(jobs)
	e.state = StateAggregated

	outputDir := e.outputDir()
	summary := &Summary{
		SessionID:     e.session,
		ProjectID:     e.params.Project.ID,
		TemplateID:    e.params.Template.ID,
		DocType:       e.params.DocType,
		PMO:           pmoLabel,
		Date:          e.params.Date.Format("2006-01-02"),
		TotalRecords:  len(records),
		Processed:     len(matched),
		PDFsGenerated: generated,
		Unmatched:     unmatched,
		ErrorsTotal:   len(recErrs),
		OutputPath:    outputDir,
	}
	if len(recErrs) > errPreviewCap {
		summary.Errors = recErrs[:errPreviewCap]
	} else {
		summary.Errors = recErrs
	}
	if len(unmatched) > 0 {
		if path, err := WriteUnmatchedReport(outputDir, e.session, unmatched); err != nil {
			log.Printf("session %s: unmatched report failed: %v", e.session, err)
		} else {
			summary.ReportPath = path
		}
	}
	elapsed := time.Since(start).Seconds()
	summary.ElapsedSeconds = elapsed
	if elapsed > 0 && generated > 0 {
		summary.PDFsPerSecond = float64(generated) / elapsed
	}
	e.state = StateDone
	log.Printf("session %s: done, %d PDFs in %.2fs", e.session, generated, elapsed)
	return summary, nil
}

// matchedRecord joins an input record to its padron row.
type matchedRecord struct {
	Record
	padronRow map[string]any
}

// match joins the input against the padron table (read-only) and splits out
// the accounts that are not present. Unmatched accounts are never rendered
// but always reported.
func (e *Engine) match(records []Record) ([]matchedRecord, []string, error) {
	cuentas := uniqueCuentas(records)
	rows, err := e.padron.FindByAccounts(e.params.Project.PadronTable, cuentas)
	if err != nil {
		return nil, nil, err
	}
	byCuenta := make(map[string]map[string]any, len(rows))
	for _, row := range rows {
		byCuenta[fmt.Sprint(row["cuenta"])] = row
	}
	var matched []matchedRecord
	for _, r := range records {
		if row, ok := byCuenta[r.Cuenta]; ok {
			matched = append(matched, matchedRecord{Record: r, padronRow: row})
		}
	}
	var unmatched []string
	for _, c := range cuentas {
		if _, ok := byCuenta[c]; !ok {
			unmatched = append(unmatched, c)
		}
	}
	return matched, unmatched, nil
}

// resolveJobs computes every derived field sequentially: the PMO label once
// per run, a visita code per record via the per-account running counter, the
// barcode payload, and the formatted data blob handed to the renderer.
func (e *Engine) resolveJobs(matched []matchedRecord) ([]renderJob, string, error) {
	seq, err := newSequenceResolver(e.recorder, e.params.Project.ID, e.params.DocType)
	if err != nil {
		return nil, "", err
	}
	pmoLabel := seq.PMOLabel()
	fecha := e.params.Date.Format("20060102")

	jobs := make([]renderJob, 0, len(matched))
	for _, m := range matched {
		visita, err := seq.Visita(m.Cuenta)
		if err != nil {
			return nil, "", err
		}
		payload := barcodePayload(m.Cuenta, fecha, visita)

		data := e.locale.FormatRow(m.padronRow)
		delete(data, "id")
		delete(data, "is_deleted")
		for k, v := range m.Extra {
			if _, exists := data[k]; !exists {
				data[k] = v
			}
		}
		data["cuenta"] = m.Cuenta
		data["pmo"] = pmoLabel
		data["visita"] = visita
		data["codigo_barras"] = payload
		data["documento"] = e.params.DocType
		data["fecha_emision"] = e.params.Date.Format(e.locale.DateFormat)

		jobs = append(jobs, renderJob{
			record:  m.Record,
			data:    data,
			pmo:     pmoLabel,
			visita:  visita,
			payload: payload,
		})
	}
	return jobs, pmoLabel, nil
}

// outputDir is {base}/{projectID}/{YYYYMMDD}; files inside are named by
// cuenta, so rerunning a project/date overwrites per account. That
// at-most-one-file-per-account-per-day layout is intentional.
func (e *Engine) outputDir() string {
	return filepath.Join(e.params.OutputBase,
		strconv.FormatUint(uint64(e.params.Project.ID), 10),
		e.params.Date.Format("20060102"))
}

// renderFields converts the stored template field map into renderer fields.
func (e *Engine) renderFields() []pdfrender.Field {
	fields := make([]pdfrender.Field, 0, len(e.params.Template.Fields))
	for _, f := range e.params.Template.Fields {
		fields = append(fields, pdfrender.Field{
			PadronField: f.PadronField,
			X:           f.X,
			Y:           f.Y,
			Width:       f.Width,
			Height:      f.Height,
			Font:        f.Font,
			Size:        f.Size,
			IsBarcode:   f.IsBarcode,
			Format:      f.Format,
		})
	}
	return fields
}

func (e *Engine) pageSize() pdfrender.PageSize {
	ps := e.params.Template.PageSize
	if ps.Width <= 0 || ps.Height <= 0 {
		return pdfrender.DefaultPageSize
	}
	return pdfrender.PageSize{Width: ps.Width, Height: ps.Height}
}
