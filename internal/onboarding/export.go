package onboarding

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteFailedRows writes the job's row-level error log as CSV so the operator
// can fix and re-upload only those rows. Job-level entries (row 0) are skipped.
func WriteFailedRows(w io.Writer, job *Job) error {
	cw := csv.NewWriter(w)

	header := append([]string{"_row", "_error"}, RequiredColumns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, e := range job.ErrorLog {
		if e.Row == 0 {
			continue
		}
		record := make([]string, 0, len(header))
		record = append(record, strconv.Itoa(e.Row), e.Reason)
		for _, col := range RequiredColumns {
			record = append(record, e.Data[col])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
