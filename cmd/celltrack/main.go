package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/LdDl/cell-tracks/config"
	"github.com/LdDl/cell-tracks/lineage"
	"github.com/LdDl/cell-tracks/motion"
	"github.com/LdDl/cell-tracks/store"
	"github.com/LdDl/cell-tracks/table"
	"github.com/LdDl/cell-tracks/trackmate"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <reconstruct|motion> [flags]\n", os.Args[0])
	os.Exit(2)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "reconstruct":
		err = runReconstruct(os.Args[2:])
	case "motion":
		err = runMotion(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Empty(), nil
	}
	return config.Load(path)
}

func runReconstruct(args []string) error {
	fs := flag.NewFlagSet("reconstruct", flag.ExitOnError)
	xmlPath := fs.String("xml", "", "path to TrackMate XML export")
	outPath := fs.String("out", "lineage.csv", "path to output lineage CSV")
	roiPath := fs.String("roi", "", "optional path to output ROI vertices CSV")
	staticPath := fs.String("static", "", "optional static frame features CSV to join")
	dbPath := fs.String("db", "", "optional sqlite database to store the run in")
	configPath := fs.String("config", "", "path to JSON config")
	fs.Parse(args)

	if *xmlPath == "" {
		return errors.New("-xml must be provided")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	comma := cfg.GetCSVComma()

	model, err := trackmate.ReadFile(*xmlPath)
	if err != nil {
		return err
	}
	result, err := lineage.NewReconstructorDefault().Reconstruct(model.Detections(), model.Links())
	if err != nil {
		return err
	}
	log.Printf("run %s: %d spots, %d edges, %d pruned, %d tracks, %d rows, %d warnings",
		result.RunID, len(model.Spots), len(model.Edges), result.Pruned, result.Tracks, len(result.Rows), len(result.Warnings))

	records := table.Records(result.Rows)
	var staticColumns []string
	if *staticPath != "" {
		staticTable, err := table.ReadFile(*staticPath, comma)
		if err != nil {
			return err
		}
		static, err := table.ReadStatic(staticTable)
		if err != nil {
			return err
		}
		var warnings []lineage.Warning
		records, warnings = table.Join(result.Rows, static, nil)
		staticColumns = static.Columns
		log.Printf("run %s: %d rows joined with static features, %d dropped", result.RunID, len(records), len(warnings))
	}

	err = table.LineageTable(records, staticColumns).WriteFile(*outPath, comma)
	if err != nil {
		return err
	}
	if *roiPath != "" {
		err = table.ROITable(result.Rows).WriteFile(*roiPath, comma)
		if err != nil {
			return err
		}
	}
	if *dbPath != "" {
		ctx := context.Background()
		s, err := store.Open(ctx, *dbPath)
		if err != nil {
			return err
		}
		defer s.Close()
		err = s.SaveReconstruction(ctx, result)
		if err != nil {
			return err
		}
		log.Printf("run %s stored in %s", result.RunID, *dbPath)
	}
	return nil
}

func runMotion(args []string) error {
	fs := flag.NewFlagSet("motion", flag.ExitOnError)
	featuresPath := fs.String("features", "", "path to per-frame features CSV (CellID/TRACK_ID, FrameID/FRAME, x/POSITION_X, y/POSITION_Y)")
	outPath := fs.String("out", "motion.csv", "path to output CSV")
	frameRate := fs.Float64("framerate", 0, "frame rate constant, overrides config")
	minFrames := fs.Int("min-frames", -1, "keep only tracks with more samples than this, overrides config")
	smooth := fs.Bool("smooth", false, "append Kalman smoothed positions")
	summaryPath := fs.String("summary", "", "optional path to per-track summary CSV")
	dbPath := fs.String("db", "", "optional sqlite database to store features in")
	runID := fs.String("run", "", "run id to store features under; new one when empty")
	configPath := fs.String("config", "", "path to JSON config")
	fs.Parse(args)

	if *featuresPath == "" {
		return errors.New("-features must be provided")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *frameRate > 0 {
		cfg.FrameRate = frameRate
	}
	if *minFrames >= 0 {
		cfg.MinTrackFrames = minFrames
	}
	if *smooth {
		cfg.Smooth = smooth
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	comma := cfg.GetCSVComma()

	input, err := table.ReadFile(*featuresPath, comma)
	if err != nil {
		return err
	}
	columns := table.DefaultSampleColumns()
	samples, err := table.ExtractSamples(input, columns)
	if err != nil {
		return err
	}
	samples = motion.FilterMinFrames(samples, cfg.GetMinTrackFrames())
	features, err := cfg.Deriver().Derive(samples)
	if err != nil {
		return err
	}
	output, err := table.AppendMotion(input, features, columns)
	if err != nil {
		return err
	}
	err = output.WriteFile(*outPath, comma)
	if err != nil {
		return err
	}
	log.Printf("motion features of %d samples written to %s", len(features), *outPath)

	if *summaryPath != "" {
		err = table.SummaryTable(motion.Summarize(features)).WriteFile(*summaryPath, comma)
		if err != nil {
			return err
		}
	}
	if *dbPath != "" {
		id := uuid.New()
		if *runID != "" {
			id, err = uuid.Parse(*runID)
			if err != nil {
				return err
			}
		}
		ctx := context.Background()
		s, err := store.Open(ctx, *dbPath)
		if err != nil {
			return err
		}
		defer s.Close()
		err = s.SaveMotion(ctx, id, features)
		if err != nil {
			return err
		}
		log.Printf("motion features stored in %s under run %s", *dbPath, id)
	}
	return nil
}
