package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"auticare/types"
)

var requiredColumns = []string{"patient_id", "patient_name", "gender", "patient_data", "suggestion"}

// RecordStore is the read-only patient table. A store that failed to load
// answers every lookup with no match.
type RecordStore struct {
	records []types.Record
	loaded  bool
	logger  *slog.Logger
}

func NewRecordStore(records []types.Record, logger *slog.Logger) *RecordStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordStore{records: records, loaded: true, logger: logger}
}

// LoadRecords reads the CSV table at path. A missing or malformed file is
// logged and yields an unavailable store, never an error.
func LoadRecords(path string, logger *slog.Logger) *RecordStore {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("records file not available", "path", path, "error", err.Error())
		return &RecordStore{logger: logger}
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		logger.Warn("records file could not be parsed", "path", path, "error", err.Error())
		return &RecordStore{logger: logger}
	}
	logger.Info("records loaded", "path", path, "rows", len(records))
	return NewRecordStore(records, logger)
}

func ReadRecords(r io.Reader) ([]types.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = false

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty records file")
		}
		return nil, err
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	field := func(row []string, name string) string {
		i := cols[name]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []types.Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, types.Record{
			ID:         field(row, "patient_id"),
			Name:       field(row, "patient_name"),
			Gender:     field(row, "gender"),
			Notes:      field(row, "patient_data"),
			Suggestion: field(row, "suggestion"),
		})
	}
	return records, nil
}

func (s *RecordStore) Available() bool {
	return s != nil && s.loaded
}

func (s *RecordStore) Len() int {
	if !s.Available() {
		return 0
	}
	return len(s.records)
}

func (s *RecordStore) Records() []types.Record {
	if !s.Available() {
		return nil
	}
	out := make([]types.Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *RecordStore) LookupByID(id string) (types.Record, bool) {
	if !s.Available() {
		return types.Record{}, false
	}
	want := strings.TrimSpace(id)
	if want == "" {
		return types.Record{}, false
	}
	for _, r := range s.records {
		if strings.TrimSpace(r.ID) == want {
			s.logger.Debug("record found by id", "id", want, "name", r.Name)
			return r, true
		}
	}
	s.logger.Debug("no record with id", "id", want)
	return types.Record{}, false
}

// LookupByName walks the table in order and returns the first row that
// satisfies any matching tier. Rows are not ranked against each other.
func (s *RecordStore) LookupByName(name string) (types.Record, bool) {
	if !s.Available() {
		return types.Record{}, false
	}
	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" {
		return types.Record{}, false
	}
	queryParts := strings.Fields(query)

	for _, r := range s.records {
		stored := strings.ToLower(strings.TrimSpace(r.Name))
		if stored == "" {
			continue
		}
		if stored == query || strings.Contains(stored, query) || strings.Contains(query, stored) {
			s.logger.Debug("record found by name", "query", query, "name", r.Name)
			return r, true
		}
		for _, part := range strings.Fields(stored) {
			if len(part) <= 2 {
				continue
			}
			for _, qp := range queryParts {
				if part == qp {
					s.logger.Debug("record found by name part", "part", part, "name", r.Name)
					return r, true
				}
			}
		}
	}
	return types.Record{}, false
}

func (s *RecordStore) LookupByCategory(term string) []types.Record {
	if !s.Available() {
		return nil
	}
	want := strings.ToLower(strings.TrimSpace(term))
	if want == "" {
		return nil
	}
	var out []types.Record
	for _, r := range s.records {
		if strings.Contains(strings.ToLower(r.Notes), want) {
			out = append(out, r)
		}
	}
	return out
}
