// Package export writes member records to CSV files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cristian081496/ontario-directory-scraper/internal/member"
)

// ErrNoValidRecords is returned when none of the records has a company name.
var ErrNoValidRecords = errors.New("no valid records to export")

// Header is the CSV column row.
var Header = []string{
	"Company Name",
	"Contact Name",
	"Phone",
	"Email",
	"City",
	"Province",
	"Website",
	"Member Type",
}

// CSVExporter writes records into a new file under Dir. An existing file is
// never overwritten.
type CSVExporter struct {
	dir      string
	fileName string
	logger   *zap.Logger
}

// NewCSVExporter builds a CSVExporter. An empty dir means the working directory.
func NewCSVExporter(dir, fileName string, logger *zap.Logger) *CSVExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		dir = "."
	}
	return &CSVExporter{dir: dir, fileName: fileName, logger: logger}
}

// Export writes the valid records and returns the path written. With no
// valid record it writes nothing and returns ErrNoValidRecords.
func (e *CSVExporter) Export(records []member.Record) (string, error) {
	valid := member.FilterValid(records)
	if len(valid) == 0 {
		e.logger.Warn("no valid records to export", zap.Int("count", len(records)))
		return "", ErrNoValidRecords
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if strings.TrimSpace(e.fileName) == "" {
		return "", fmt.Errorf("output file name is required")
	}
	tmp, err := writeTemp(e.dir, e.fileName, valid)
	if err != nil {
		return "", err
	}
	path, err := linkUnique(tmp, func() (string, error) { return UniquePath(e.dir, e.fileName) })
	if err != nil {
		return "", err
	}
	e.logger.Info("csv written", zap.String("path", path), zap.Int("count", len(valid)))
	return path, nil
}

// UniquePath returns dir/fileName, or the first free dir/name-N.ext when it is
// taken.
func UniquePath(dir, fileName string) (string, error) {
	if strings.TrimSpace(fileName) == "" {
		return "", fmt.Errorf("output file name is required")
	}
	candidate := filepath.Join(dir, fileName)
	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	for counter := 1; ; counter++ {
		_, err := os.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		candidate = filepath.Join(dir, base+"-"+strconv.Itoa(counter)+ext)
	}
}

// writeTemp writes the CSV into a hidden temp file in dir and returns its name.
func writeTemp(dir, fileName string, records []member.Record) (name string, err error) {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fileName)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(Header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		if err = w.Write(row(r)); err != nil {
			return "", fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	return tmp.Name(), nil
}

// linkUnique hard-links tmp to the path returned by next and removes tmp. A
// target that appeared after next chose it is left alone and next is asked
// again.
func linkUnique(tmp string, next func() (string, error)) (string, error) {
	defer func() { _ = os.Remove(tmp) }()
	for {
		path, err := next()
		if err != nil {
			return "", err
		}
		err = os.Link(tmp, path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("link into place: %w", err)
		}
	}
}

func row(r member.Record) []string {
	return []string{
		r.Company,
		r.ContactName,
		r.Phone,
		r.Email,
		r.City,
		r.Province,
		r.Website,
		r.MemberType,
	}
}
