package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/LdDl/cell-tracks/geom"
	"github.com/LdDl/cell-tracks/lineage"
	"github.com/LdDl/cell-tracks/motion"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	created_at  BIGINT NOT NULL,
	tracks      INTEGER NOT NULL DEFAULT 0,
	pruned      INTEGER NOT NULL DEFAULT 0,
	warnings    INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS lineage_rows (
	run_id        TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	detection_id  INTEGER NOT NULL,
	label         TEXT,
	track_id      INTEGER NOT NULL,
	frame_id      INTEGER NOT NULL,
	x             DOUBLE NOT NULL,
	y             DOUBLE NOT NULL,
	filename_key  TEXT NOT NULL,
	roi_x         DOUBLE,
	roi_y         DOUBLE,
	roi_width     DOUBLE,
	roi_height    DOUBLE,
	PRIMARY KEY (run_id, detection_id)
);
CREATE TABLE IF NOT EXISTS roi_vertices (
	run_id        TEXT NOT NULL,
	detection_id  INTEGER NOT NULL,
	vertex        INTEGER NOT NULL,
	x             DOUBLE NOT NULL,
	y             DOUBLE NOT NULL,
	PRIMARY KEY (run_id, detection_id, vertex),
	FOREIGN KEY (run_id, detection_id) REFERENCES lineage_rows(run_id, detection_id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS motion_features (
	run_id        TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	track_id      INTEGER NOT NULL,
	frame_id      INTEGER NOT NULL,
	x             DOUBLE NOT NULL,
	y             DOUBLE NOT NULL,
	dis           DOUBLE NOT NULL,
	frame_delta   DOUBLE NOT NULL,
	trac          DOUBLE NOT NULL,
	d2t           DOUBLE NOT NULL,
	vel           DOUBLE NOT NULL,
	smooth_x      DOUBLE,
	smooth_y      DOUBLE,
	PRIMARY KEY (run_id, track_id, frame_id)
);
`

// Store persists reconstruction runs and motion features in SQLite
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) database at path and applies schema
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open database")
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "Can't execute %q", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Can't apply schema")
	}
	return &Store{db: db}, nil
}

// Close closes database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReconstruction stores run summary, rows and ROI vertices in a single transaction
func (s *Store) SaveReconstruction(ctx context.Context, result *lineage.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "Can't begin transaction")
	}
	defer tx.Rollback()

	runID := result.RunID.String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, tracks, pruned, warnings) VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now().UnixNano(), result.Tracks, result.Pruned, len(result.Warnings),
	)
	if err != nil {
		return errors.Wrapf(err, "Can't insert run %s", runID)
	}
	rowStmt, err := tx.PrepareContext(ctx, `INSERT INTO lineage_rows
		(run_id, detection_id, label, track_id, frame_id, x, y, filename_key, roi_x, roi_y, roi_width, roi_height)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "Can't prepare row statement")
	}
	defer rowStmt.Close()
	vertexStmt, err := tx.PrepareContext(ctx, `INSERT INTO roi_vertices (run_id, detection_id, vertex, x, y) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "Can't prepare vertex statement")
	}
	defer vertexStmt.Close()

	for _, row := range result.Rows {
		bounds := row.ROI.Bounds()
		_, err = rowStmt.ExecContext(ctx,
			runID, row.DetectionID, row.Label, row.TrackID, row.FrameID, row.Position.X, row.Position.Y, row.FilenameKey,
			bounds.X, bounds.Y, bounds.Width, bounds.Height,
		)
		if err != nil {
			return errors.Wrapf(err, "Can't insert detection %d", row.DetectionID)
		}
		for i, pt := range row.ROI {
			_, err = vertexStmt.ExecContext(ctx, runID, row.DetectionID, i, pt.X, pt.Y)
			if err != nil {
				return errors.Wrapf(err, "Can't insert vertex %d of detection %d", i, row.DetectionID)
			}
		}
	}
	return errors.Wrap(tx.Commit(), "Can't commit reconstruction")
}

// SaveMotion stores motion features under given run. Run is created when missing
func (s *Store) SaveMotion(ctx context.Context, runID uuid.UUID, features []motion.Features) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "Can't begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO runs (run_id, created_at) VALUES (?, ?)`, runID.String(), time.Now().UnixNano())
	if err != nil {
		return errors.Wrapf(err, "Can't insert run %s", runID)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO motion_features
		(run_id, track_id, frame_id, x, y, dis, frame_delta, trac, d2t, vel, smooth_x, smooth_y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "Can't prepare motion statement")
	}
	defer stmt.Close()
	for _, f := range features {
		var smoothX, smoothY sql.NullFloat64
		if f.Smoothed != nil {
			smoothX = sql.NullFloat64{Float64: f.Smoothed.X, Valid: true}
			smoothY = sql.NullFloat64{Float64: f.Smoothed.Y, Valid: true}
		}
		_, err = stmt.ExecContext(ctx,
			runID.String(), f.TrackID, f.FrameID, f.X, f.Y,
			f.DistanceFromStart, f.FrameDelta, f.PathLength, f.Straightness, f.Velocity,
			smoothX, smoothY,
		)
		if err != nil {
			return errors.Wrapf(err, "Can't insert features of track %d frame %d", f.TrackID, f.FrameID)
		}
	}
	return errors.Wrap(tx.Commit(), "Can't commit motion features")
}

// TrackIDs returns track id of every stored detection of run
func (s *Store) TrackIDs(ctx context.Context, runID uuid.UUID) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT detection_id, track_id FROM lineage_rows WHERE run_id = ?`, runID.String())
	if err != nil {
		return nil, errors.Wrap(err, "Can't query lineage rows")
	}
	defer rows.Close()
	ids := make(map[int]int)
	for rows.Next() {
		var detectionID, trackID int
		if err := rows.Scan(&detectionID, &trackID); err != nil {
			return nil, errors.Wrap(err, "Can't scan lineage row")
		}
		ids[detectionID] = trackID
	}
	return ids, errors.Wrap(rows.Err(), "Can't iterate lineage rows")
}

// ROI returns stored absolute polygon of detection
func (s *Store) ROI(ctx context.Context, runID uuid.UUID, detectionID int) (geom.Polygon, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT x, y FROM roi_vertices WHERE run_id = ? AND detection_id = ? ORDER BY vertex`,
		runID.String(), detectionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "Can't query ROI vertices")
	}
	defer rows.Close()
	poly := make(geom.Polygon, 0)
	for rows.Next() {
		pt := geom.Point{}
		if err := rows.Scan(&pt.X, &pt.Y); err != nil {
			return nil, errors.Wrap(err, "Can't scan ROI vertex")
		}
		poly = append(poly, pt)
	}
	return poly, errors.Wrap(rows.Err(), "Can't iterate ROI vertices")
}

// Motion returns stored features of run ordered by track then frame
func (s *Store) Motion(ctx context.Context, runID uuid.UUID) ([]motion.Features, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT track_id, frame_id, x, y, dis, frame_delta, trac, d2t, vel, smooth_x, smooth_y
		FROM motion_features WHERE run_id = ? ORDER BY track_id, frame_id`, runID.String())
	if err != nil {
		return nil, errors.Wrap(err, "Can't query motion features")
	}
	defer rows.Close()
	out := make([]motion.Features, 0)
	for rows.Next() {
		f := motion.Features{}
		var smoothX, smoothY sql.NullFloat64
		err := rows.Scan(&f.TrackID, &f.FrameID, &f.X, &f.Y,
			&f.DistanceFromStart, &f.FrameDelta, &f.PathLength, &f.Straightness, &f.Velocity,
			&smoothX, &smoothY,
		)
		if err != nil {
			return nil, errors.Wrap(err, "Can't scan motion features")
		}
		if smoothX.Valid && smoothY.Valid {
			f.Smoothed = &geom.Point{X: smoothX.Float64, Y: smoothY.Float64}
		}
		out = append(out, f)
	}
	return out, errors.Wrap(rows.Err(), "Can't iterate motion features")
}
