package table

import (
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/LdDl/cell-tracks/lineage"
	"github.com/LdDl/cell-tracks/motion"
)

// Columns of lineage table
const (
	ColLabel       = "LABEL"
	ColID          = "ID"
	ColTrackID     = "TRACK_ID"
	ColFrame       = "FRAME"
	ColPositionX   = "POSITION_X"
	ColPositionY   = "POSITION_Y"
	ColROIFilename = "ROI_FILENAME"
)

// Key columns of static feature table
const (
	StaticFrameID     = "FrameID"
	StaticID          = "ID"
	StaticCellID      = "CellID"
	StaticROIFilename = "ROI_filename"
	StaticX           = "x"
	StaticY           = "y"
)

// spotColumns is column order of the detection engine's own spot export
var spotColumns = []string{
	ColLabel, ColID, ColTrackID, "QUALITY", ColPositionX, ColPositionY, "POSITION_Z", "POSITION_T", ColFrame,
	"RADIUS", "VISIBILITY",
	"MEAN_INTENSITY_CH1", "MEDIAN_INTENSITY_CH1", "MIN_INTENSITY_CH1", "MAX_INTENSITY_CH1",
	"TOTAL_INTENSITY_CH1", "STD_INTENSITY_CH1", "CONTRAST_CH1", "SNR_CH1",
	"ELLIPSE_X0", "ELLIPSE_Y0", "ELLIPSE_MAJOR", "ELLIPSE_MINOR", "ELLIPSE_THETA", "ELLIPSE_ASPECTRATIO",
	"AREA", "PERIMETER", "CIRCULARITY", "SOLIDITY", "SHAPE_INDEX",
}

var coreColumns = map[string]bool{
	ColLabel: true, ColID: true, ColTrackID: true, ColPositionX: true, ColPositionY: true, ColFrame: true,
}

// Key identifies a detection at a frame. FrameID is 1-indexed
type Key struct {
	FrameID     int
	DetectionID int
}

// Static is a table of per-frame shape and intensity features
type Static struct {
	// Columns are numeric feature columns in file order
	Columns []string
	Rows    map[Key]map[string]float64
}

// Record is lineage row joined with its static features
type Record struct {
	lineage.Row
	Static map[string]float64
}

// ReadStatic converts table keyed by (FrameID, ID) into static features.
// When ID column is absent detection id is taken from the last segment of ROI_filename.
// Columns that are not numeric in every record are skipped.
func ReadStatic(t *Table) (*Static, error) {
	frameCol, ok := t.Column(StaticFrameID)
	if !ok {
		return nil, errors.Errorf("static table has no %s column", StaticFrameID)
	}
	idCol, hasID := t.Column(StaticID)
	keyCol, hasKey := t.Column(StaticROIFilename)
	if !hasID && !hasKey {
		return nil, errors.Errorf("static table has neither %s nor %s column", StaticID, StaticROIFilename)
	}

	static := &Static{
		Rows: make(map[Key]map[string]float64, len(t.Records)),
	}
	skip := map[int]bool{frameCol: true}
	if hasID {
		skip[idCol] = true
	}
	if hasKey {
		skip[keyCol] = true
	}
	if cellCol, ok := t.Column(StaticCellID); ok {
		skip[cellCol] = true
	}
	for col, name := range t.Header {
		if skip[col] {
			continue
		}
		numeric := true
		for row := range t.Records {
			if _, err := strconv.ParseFloat(t.Records[row][col], 64); err != nil {
				numeric = false
				break
			}
		}
		if numeric {
			static.Columns = append(static.Columns, name)
		}
	}

	for row := range t.Records {
		frameID, err := parseInt(t, row, frameCol)
		if err != nil {
			return nil, err
		}
		var detectionID int
		if hasID {
			detectionID, err = parseInt(t, row, idCol)
		} else {
			detectionID, err = detectionFromKey(t.Records[row][keyCol])
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Bad detection id at record #%d", row)
		}
		values := make(map[string]float64, len(static.Columns))
		for _, name := range static.Columns {
			col, _ := t.Column(name)
			values[name], _ = strconv.ParseFloat(t.Records[row][col], 64)
		}
		key := Key{FrameID: frameID, DetectionID: detectionID}
		if _, ok := static.Rows[key]; ok {
			return nil, errors.Errorf("duplicate static row for frame %d detection %d", frameID, detectionID)
		}
		static.Rows[key] = values
	}
	return static, nil
}

func detectionFromKey(key string) (int, error) {
	parts := strings.Split(key, lineage.KeySeparator)
	return strconv.Atoi(parts[len(parts)-1])
}

// Records wraps lineage rows without static features
func Records(rows []lineage.Row) []Record {
	records := make([]Record, len(rows))
	for i := range rows {
		records[i] = Record{Row: rows[i]}
	}
	return records
}

// Join attaches static features to lineage rows. Rows without a static match are dropped
// and reported. Nil logger means standard one.
func Join(rows []lineage.Row, static *Static, logger *log.Logger) ([]Record, []lineage.Warning) {
	if logger == nil {
		logger = log.Default()
	}
	records := make([]Record, 0, len(rows))
	warnings := make([]lineage.Warning, 0)
	for _, row := range rows {
		values, ok := static.Rows[Key{FrameID: row.FrameID, DetectionID: row.DetectionID}]
		if !ok {
			warning := lineage.Warning{Kind: lineage.WarningMissingStatic, DetectionID: row.DetectionID, Frame: row.FrameID - 1}
			logger.Printf("[table] %s", warning)
			warnings = append(warnings, warning)
			continue
		}
		records = append(records, Record{Row: row, Static: values})
	}
	return records, warnings
}

// Samples extracts motion samples. Position is taken from static x/y when present,
// otherwise from detection position.
func Samples(records []Record) []motion.Sample {
	samples := make([]motion.Sample, len(records))
	for i, record := range records {
		sample := motion.Sample{
			TrackID: record.TrackID,
			FrameID: record.FrameID,
			X:       record.Position.X,
			Y:       record.Position.Y,
		}
		x, okX := record.Static[StaticX]
		y, okY := record.Static[StaticY]
		if okX && okY {
			sample.X, sample.Y = x, y
		}
		samples[i] = sample
	}
	return samples
}

// LineageTable renders records: spot columns in the detection engine's export order,
// then remaining attributes sorted, ROI_FILENAME and static columns in given order.
func LineageTable(records []Record, staticColumns []string) *Table {
	present := make(map[string]bool)
	for _, record := range records {
		for name := range record.Attributes {
			present[name] = true
		}
	}
	header := make([]string, 0, len(spotColumns)+len(present)+1+len(staticColumns))
	known := make(map[string]bool, len(spotColumns))
	for _, name := range spotColumns {
		known[name] = true
		if coreColumns[name] || present[name] {
			header = append(header, name)
		}
	}
	extra := make([]string, 0)
	for name := range present {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	header = append(header, extra...)
	header = append(header, ColROIFilename)
	header = append(header, staticColumns...)

	t := NewTable(header)
	for _, record := range records {
		values := make([]string, 0, len(header))
		for i, name := range header {
			if i >= len(header)-len(staticColumns) {
				values = append(values, optional(record.Static, name))
				continue
			}
			switch name {
			case ColLabel:
				values = append(values, record.Label)
			case ColID:
				values = append(values, strconv.Itoa(record.DetectionID))
			case ColTrackID:
				values = append(values, strconv.Itoa(record.TrackID))
			case ColFrame:
				values = append(values, strconv.Itoa(record.FrameID))
			case ColPositionX:
				values = append(values, formatFloat(record.Position.X))
			case ColPositionY:
				values = append(values, formatFloat(record.Position.Y))
			case ColROIFilename:
				values = append(values, record.FilenameKey)
			default:
				values = append(values, optional(record.Attributes, name))
			}
		}
		t.Records = append(t.Records, values)
	}
	return t
}

// ROITable renders absolute ROI vertices in long format, one row per vertex
func ROITable(rows []lineage.Row) *Table {
	t := NewTable([]string{ColROIFilename, StaticCellID, StaticFrameID, "VERTEX", "X", "Y"})
	for _, row := range rows {
		for i, pt := range row.ROI {
			t.Records = append(t.Records, []string{
				row.FilenameKey,
				strconv.Itoa(row.TrackID),
				strconv.Itoa(row.FrameID),
				strconv.Itoa(i),
				formatFloat(pt.X),
				formatFloat(pt.Y),
			})
		}
	}
	return t
}

func optional(values map[string]float64, name string) string {
	value, ok := values[name]
	if !ok {
		return ""
	}
	return formatFloat(value)
}
