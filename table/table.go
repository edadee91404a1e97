package table

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Table is a CSV table kept as strings, so columns unknown to this module pass through untouched
type Table struct {
	Header  []string
	Records [][]string
	index   map[string]int
}

// NewTable creates table with given header
func NewTable(header []string) *Table {
	t := &Table{
		Header: header,
	}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		if _, ok := t.index[name]; !ok {
			t.index[name] = i
		}
	}
}

// Read reads CSV table with header line
func Read(r io.Reader, comma rune) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "Can't read header")
	}
	t := NewTable(header)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Can't read record #%d", len(t.Records))
		}
		t.Records = append(t.Records, record)
	}
	return t, nil
}

// ReadFile reads CSV table from file
func ReadFile(path string, comma rune) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open table")
	}
	defer file.Close()
	return Read(file, comma)
}

// Write writes header and records
func (t *Table) Write(w io.Writer, comma rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = comma
	err := writer.Write(t.Header)
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}
	err = writer.WriteAll(t.Records)
	if err != nil {
		return errors.Wrap(err, "Can't write records")
	}
	return nil
}

// WriteFile writes table to file
func (t *Table) WriteFile(path string, comma rune) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "Can't create table file")
	}
	err = t.Write(file, comma)
	if err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Column returns index of the first existing column among candidates
func (t *Table) Column(candidates ...string) (int, bool) {
	for _, name := range candidates {
		if idx, ok := t.index[name]; ok {
			return idx, true
		}
	}
	return -1, false
}

// Append adds a row. Row must have as many values as header
func (t *Table) Append(record []string) error {
	if len(record) != len(t.Header) {
		return errors.Errorf("record has %d values, header has %d", len(record), len(t.Header))
	}
	t.Records = append(t.Records, record)
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(t *Table, row, col int) (float64, error) {
	value, err := strconv.ParseFloat(t.Records[row][col], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "Bad %s at record #%d", t.Header[col], row)
	}
	return value, nil
}

func parseInt(t *Table, row, col int) (int, error) {
	raw := t.Records[row][col]
	value, err := strconv.Atoi(raw)
	if err == nil {
		return value, nil
	}
	f, ferr := strconv.ParseFloat(raw, 64)
	if ferr != nil || f != float64(int(f)) {
		return 0, errors.Wrapf(err, "Bad %s at record #%d", t.Header[col], row)
	}
	return int(f), nil
}
