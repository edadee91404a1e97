package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/cell-tracks/table"
)

const pipelineXML = `<TrackMate><Model><AllSpots>
<SpotsInFrame frame="0"><Spot ID="0" name="ID0" FRAME="0" POSITION_X="0" POSITION_Y="0" QUALITY="1">-1 -1 1 -1 0 1</Spot></SpotsInFrame>
<SpotsInFrame frame="1"><Spot ID="1" name="ID1" FRAME="1" POSITION_X="3" POSITION_Y="4" QUALITY="1">-1 -1 1 -1 0 1</Spot>
<Spot ID="2" name="ID2" FRAME="1" POSITION_X="-3" POSITION_Y="0" QUALITY="1">-1 -1 1 -1 0 1</Spot></SpotsInFrame>
<SpotsInFrame frame="3"><Spot ID="3" name="ID3" FRAME="3" POSITION_X="3" POSITION_Y="4" QUALITY="1">-1 -1 1 -1 0 1</Spot></SpotsInFrame>
</AllSpots><AllTracks><Track>
<Edge SPOT_SOURCE_ID="0" SPOT_TARGET_ID="1"/><Edge SPOT_SOURCE_ID="0" SPOT_TARGET_ID="2"/><Edge SPOT_SOURCE_ID="1" SPOT_TARGET_ID="3"/>
</Track></AllTracks></Model></TrackMate>`

func TestPipeline(t *testing.T) {
	dir := t.TempDir()
	xmlPath := filepath.Join(dir, "spots.xml")
	require.NoError(t, os.WriteFile(xmlPath, []byte(pipelineXML), 0o644))
	lineagePath := filepath.Join(dir, "lineage.csv")
	roiPath := filepath.Join(dir, "roi.csv")
	dbPath := filepath.Join(dir, "run.db")

	err := runReconstruct([]string{"-xml", xmlPath, "-out", lineagePath, "-roi", roiPath, "-db", dbPath})
	require.NoError(t, err)

	lineageTable, err := table.ReadFile(lineagePath, ',')
	require.NoError(t, err)
	require.Len(t, lineageTable.Records, 4)
	trackCol, ok := lineageTable.Column(table.ColTrackID)
	require.True(t, ok)
	keyCol, ok := lineageTable.Column(table.ColROIFilename)
	require.True(t, ok)
	tracks := make([]string, 0, 4)
	keys := make([]string, 0, 4)
	for _, record := range lineageTable.Records {
		tracks = append(tracks, record[trackCol])
		keys = append(keys, record[keyCol])
	}
	assert.Equal(t, []string{"1", "1", "2", "1"}, tracks)
	assert.Equal(t, []string{"1-1-0", "2-1-1", "2-2-2", "4-1-3"}, keys)

	roiTable, err := table.ReadFile(roiPath, ',')
	require.NoError(t, err)
	assert.Len(t, roiTable.Records, 12)

	motionPath := filepath.Join(dir, "motion.csv")
	summaryPath := filepath.Join(dir, "summary.csv")
	err = runMotion([]string{"-features", lineagePath, "-out", motionPath, "-framerate", "1", "-summary", summaryPath, "-db", dbPath})
	require.NoError(t, err)

	motionTable, err := table.ReadFile(motionPath, ',')
	require.NoError(t, err)
	require.Len(t, motionTable.Records, 4)
	velCol, ok := motionTable.Column(table.ColVel)
	require.True(t, ok)
	velocities := make([]string, 0, 4)
	for _, record := range motionTable.Records {
		velocities = append(velocities, record[velCol])
	}
	// Track 1: (0,0) f1, (3,4) f2, (3,4) f4. Track 2: single sample
	assert.Equal(t, []string{"0", "5", "0", "0"}, velocities)

	summaryTable, err := table.ReadFile(summaryPath, ',')
	require.NoError(t, err)
	assert.Len(t, summaryTable.Records, 2)
}

func TestReconstructRequiresInput(t *testing.T) {
	assert.Error(t, runReconstruct([]string{}))
	assert.Error(t, runMotion([]string{}))
}

func TestReconstructUnknownSpot(t *testing.T) {
	dir := t.TempDir()
	xmlPath := filepath.Join(dir, "bad.xml")
	content := `<TrackMate><Model><AllSpots><SpotsInFrame><Spot ID="0" FRAME="0" POSITION_X="0" POSITION_Y="0"/></SpotsInFrame></AllSpots>
<AllTracks><Track><Edge SPOT_SOURCE_ID="0" SPOT_TARGET_ID="9"/></Track></AllTracks></Model></TrackMate>`
	require.NoError(t, os.WriteFile(xmlPath, []byte(content), 0o644))
	err := runReconstruct([]string{"-xml", xmlPath, "-out", filepath.Join(dir, "out.csv")})
	assert.Error(t, err)
}
