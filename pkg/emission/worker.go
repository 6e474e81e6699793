package emission

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"emisor/models"
	"emisor/pkg/barcode"
)

// renderJob is one fully-resolved record ready for a worker. Everything a
// worker needs is already in here; workers never read sequence state.
type renderJob struct {
	record  Record
	data    map[string]string
	pmo     string
	visita  string
	payload string
}

// dispatch fans the jobs out in fixed-size batches to a CPU-sized pool.
// Cancellation is only honored before dispatch: once batches are in flight
// they run to completion, and each worker commits its own artifact, so
// partial results survive a caller that goes away mid-run. Returns the
// generated-PDF count and the per-record errors.
func (e *Engine) dispatch(jobs []renderJob) (int, []RecordError) {
	workers := e.params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	batchCh := make(chan []renderJob, (len(jobs)+batchSize-1)/batchSize)
	for i := 0; i < len(jobs); i += batchSize {
		end := i + batchSize
		if end > len(jobs) {
			end = len(jobs)
		}
		batchCh <- jobs[i:end]
	}
	close(batchCh)

	var (
		mu        sync.Mutex
		generated int
		errs      []RecordError
	)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batchCh {
				for _, j := range batch {
					ok, recErr := e.processOne(j)
					mu.Lock()
					if ok {
						generated++
					}
					if recErr != nil {
						errs = append(errs, *recErr)
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return generated, errs
}

// processOne renders a single document and records its artifact. A render or
// write failure is recorded as an artifact with Error set and reported back;
// it never aborts the batch.
func (e *Engine) processOne(j renderJob) (bool, *RecordError) {
	em := &models.Emission{
		SessionID:  e.session,
		ProjectID:  e.params.Project.ID,
		TemplateID: e.params.Template.ID,
		UserID:     e.params.UserID,
		Cuenta:     j.record.Cuenta,
		PrintOrder: j.record.PrintOrder,
		Data:       j.data,
		DocType:    e.params.DocType,
		PMO:        j.pmo,
		Visita:     j.visita,
		Barcode:    j.payload,
		Date:       e.params.Date,
	}

	out, renderErr := e.renderRecord(j)
	if renderErr == nil {
		path := filepath.Join(e.outputDir(), j.record.Cuenta+".pdf")
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			renderErr = err
		} else if err := os.WriteFile(path, out, 0644); err != nil {
			renderErr = err
		} else {
			sum := sha256.Sum256(out)
			em.FilePath = path
			em.FileSize = int64(len(out))
			em.FileHash = hex.EncodeToString(sum[:])
		}
	}
	var recErr *RecordError
	if renderErr != nil {
		em.Error = renderErr.Error()
		recErr = &RecordError{Cuenta: j.record.Cuenta, Line: j.record.Line, Error: renderErr.Error()}
		log.Printf("session %s: cuenta %s failed: %v", e.session, j.record.Cuenta, renderErr)
	}

	if err := e.recorder.Record(em); err != nil {
		// persistence failure: surface it for this record, keep the run going
		log.Printf("session %s: artifact write for cuenta %s failed: %v", e.session, j.record.Cuenta, err)
		return false, &RecordError{Cuenta: j.record.Cuenta, Line: j.record.Line, Error: "artifact write: " + err.Error()}
	}
	return renderErr == nil, recErr
}

// renderRecord builds the barcode raster and the PDF bytes for one job.
func (e *Engine) renderRecord(j renderJob) ([]byte, error) {
	img, err := barcode.Render(j.payload, "code128")
	if err != nil {
		return nil, err
	}
	return e.renderer.Render(e.renderFields(), e.pageSize(), j.data, img)
}
