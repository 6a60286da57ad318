package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// CSV writes header and rows as comma separated values. A UTF-8 byte order
// mark goes first so spreadsheet tools pick the right encoding for accented
// names.
func CSV(w io.Writer, header []string, rows [][]string) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return fmt.Errorf("export csv: write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export csv: write header: %w", err)
	}
	for i, r := range rows {
		if err := cw.Write(r); err != nil {
			return fmt.Errorf("export csv: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename builds "<base>_<yyyymmdd>.csv".
func Filename(base string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", base, now.Format("20060102"))
}

// SendCSV streams a CSV download.
func SendCSV(c echo.Context, base string, header []string, rows [][]string) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", Filename(base, time.Now())))
	c.Response().WriteHeader(http.StatusOK)
	return CSV(c.Response(), header, rows)
}
