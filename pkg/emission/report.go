package emission

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// WriteUnmatchedReport writes the accounts absent from the padron as a CSV
// alongside the run output and returns its path.
func WriteUnmatchedReport(outputDir, sessionID string, cuentas []string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, fmt.Sprintf("cuentas_no_encontradas_%s.csv", sessionID))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Cuenta"}); err != nil {
		return "", err
	}
	for _, c := range cuentas {
		if err := w.Write([]string{c}); err != nil {
			return "", err
		}
	}
	w.Flush()
	return path, w.Error()
}
