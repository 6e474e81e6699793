package emission

import (
	"fmt"
	"strconv"
	"strings"
)

// sequenceResolver threads the PMO and visita counters through the run on the
// coordinating goroutine. All lookups against the audit store happen here,
// before dispatch; workers only ever see fully-resolved values. The per-run
// state replaces per-record store queries, which would race against the
// workers' own commits.
type sequenceResolver struct {
	rec       Recorder
	projectID uint
	docType   string

	pmoSeq    int
	visitaSeq map[string]int
}

// newSequenceResolver seeds the run-level PMO counter from the project's most
// recent artifact: "PMO <n>" parses to n+1, anything else (including no prior
// artifact) starts at 1. A store failure aborts the run.
func newSequenceResolver(rec Recorder, projectID uint, docType string) (*sequenceResolver, error) {
	last, err := rec.LastByProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("pmo lookup: %w", err)
	}
	seq := 1
	if last != nil {
		if n, ok := parsePMO(last.PMO); ok {
			seq = n + 1
		}
	}
	return &sequenceResolver{
		rec:       rec,
		projectID: projectID,
		docType:   docType,
		pmoSeq:    seq,
		visitaSeq: map[string]int{},
	}, nil
}

// PMOLabel is the batch label attached to every artifact of this run.
func (s *sequenceResolver) PMOLabel() string {
	return fmt.Sprintf("PMO %d", s.pmoSeq)
}

// Visita returns the next visit code for cuenta and advances its counter.
// The first call per account seeds from the store: a prior artifact of the
// same document type continues its numbering, a different type (or none)
// restarts at 1. Repeated accounts within one run keep incrementing.
func (s *sequenceResolver) Visita(cuenta string) (string, error) {
	if _, seeded := s.visitaSeq[cuenta]; !seeded {
		last, err := s.rec.LastByAccount(s.projectID, cuenta)
		if err != nil {
			return "", fmt.Errorf("visita lookup for %s: %w", cuenta, err)
		}
		seed := 0
		if last != nil && last.DocType == s.docType {
			if n, ok := parseVisita(last.Visita, s.docType); ok {
				seed = n
			}
		}
		s.visitaSeq[cuenta] = seed
	}
	s.visitaSeq[cuenta]++
	return fmt.Sprintf("%s%d", s.docType, s.visitaSeq[cuenta]), nil
}

// parsePMO extracts n from "PMO <n>".
func parsePMO(label string) (int, bool) {
	if !strings.HasPrefix(label, "PMO ") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(label[4:]))
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseVisita extracts the trailing counter from a code like "N2".
func parseVisita(code, docType string) (int, bool) {
	if !strings.HasPrefix(code, docType) {
		return 0, false
	}
	n, err := strconv.Atoi(code[len(docType):])
	if err != nil {
		return 0, false
	}
	return n, true
}

// barcodePayload builds the scanline content: *cuenta*YYYYMMDD*visita*.
func barcodePayload(cuenta, fecha, visita string) string {
	return fmt.Sprintf("*%s*%s*%s*", cuenta, fecha, visita)
}
