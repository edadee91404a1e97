package lineage

import (
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"

	"github.com/LdDl/cell-tracks/geom"
)

func quietReconstructor() *Reconstructor {
	return NewReconstructor(log.New(io.Discard, "", 0))
}

func newDetection(id, frame int) Detection {
	return Detection{
		ID:       id,
		Label:    fmt.Sprintf("ID%d", id),
		Frame:    frame,
		Position: geom.Point{X: float64(id), Y: float64(frame)},
		Contour:  geom.Polygon{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}},
	}
}

func trackIDs(t *testing.T, result *Result) map[int]int {
	t.Helper()
	ids := make(map[int]int, len(result.Rows))
	for _, row := range result.Rows {
		if _, ok := ids[row.DetectionID]; ok {
			t.Fatalf("Detection %d appears more than once", row.DetectionID)
		}
		ids[row.DetectionID] = row.TrackID
	}
	return ids
}

func TestReconstructSplit(t *testing.T) {
	// A(frame 0) -> B(frame 1) -> {C, D}(frame 2)
	detections := []Detection{newDetection(1, 0), newDetection(2, 1), newDetection(3, 2), newDetection(4, 2)}
	links := []Link{{Source: 1, Target: 2}, {Source: 2, Target: 3}, {Source: 2, Target: 4}}
	result, err := quietReconstructor().Reconstruct(detections, links)
	if err != nil {
		t.Fatal(err)
	}
	expected := map[int]int{1: 1, 2: 1, 3: 1, 4: 2}
	if diff := cmp.Diff(expected, trackIDs(t, result)); diff != "" {
		t.Errorf("Wrong track ids (-want +got):\n%s", diff)
	}
	if result.Tracks != 2 {
		t.Errorf("Wrong number of tracks: %d, expected: %d", result.Tracks, 2)
	}
}

func TestReconstructIndependentRoots(t *testing.T) {
	// Same lineages given in both orders must produce same ids
	first := []Detection{newDetection(10, 0), newDetection(11, 1), newDetection(20, 3), newDetection(21, 4)}
	second := []Detection{newDetection(21, 4), newDetection(20, 3), newDetection(11, 1), newDetection(10, 0)}
	firstLinks := []Link{{Source: 10, Target: 11}, {Source: 20, Target: 21}}
	secondLinks := []Link{{Source: 20, Target: 21}, {Source: 10, Target: 11}}

	expected := map[int]int{10: 1, 11: 1, 20: 2, 21: 2}
	for _, input := range []struct {
		detections []Detection
		links      []Link
	}{{first, firstLinks}, {second, secondLinks}} {
		result, err := quietReconstructor().Reconstruct(input.detections, input.links)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(expected, trackIDs(t, result)); diff != "" {
			t.Errorf("Wrong track ids (-want +got):\n%s", diff)
		}
	}
}

func TestReconstructRootTieBrokenByID(t *testing.T) {
	detections := []Detection{newDetection(7, 0), newDetection(8, 1), newDetection(3, 0), newDetection(4, 1)}
	links := []Link{{Source: 7, Target: 8}, {Source: 3, Target: 4}}
	result, err := quietReconstructor().Reconstruct(detections, links)
	if err != nil {
		t.Fatal(err)
	}
	expected := map[int]int{3: 1, 4: 1, 7: 2, 8: 2}
	if diff := cmp.Diff(expected, trackIDs(t, result)); diff != "" {
		t.Errorf("Wrong track ids (-want +got):\n%s", diff)
	}
}

func TestReconstructMerge(t *testing.T) {
	// A and B both lead to C, then C -> D
	detections := []Detection{newDetection(1, 0), newDetection(2, 0), newDetection(3, 1), newDetection(4, 2)}
	links := []Link{{Source: 1, Target: 3}, {Source: 2, Target: 3}, {Source: 3, Target: 4}}
	result, err := quietReconstructor().Reconstruct(detections, links)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Rows) != 4 {
		t.Fatalf("Wrong number of rows: %d, expected: %d", len(result.Rows), 4)
	}
	expected := map[int]int{1: 1, 3: 1, 4: 1, 2: 2}
	if diff := cmp.Diff(expected, trackIDs(t, result)); diff != "" {
		t.Errorf("Wrong track ids (-want +got):\n%s", diff)
	}
}

func TestReconstructDepthFirstOrder(t *testing.T) {
	// A -> {B, C}, B -> {D, E}. Subtree of B is exhausted before C
	detections := []Detection{newDetection(1, 0), newDetection(2, 1), newDetection(3, 1), newDetection(4, 2), newDetection(5, 2)}
	links := []Link{{Source: 1, Target: 2}, {Source: 1, Target: 3}, {Source: 2, Target: 4}, {Source: 2, Target: 5}}
	result, err := quietReconstructor().Reconstruct(detections, links)
	if err != nil {
		t.Fatal(err)
	}
	expected := map[int]int{1: 1, 2: 1, 4: 1, 5: 2, 3: 3}
	if diff := cmp.Diff(expected, trackIDs(t, result)); diff != "" {
		t.Errorf("Wrong track ids (-want +got):\n%s", diff)
	}
}

func TestReconstructMultipleChildren(t *testing.T) {
	detections := []Detection{newDetection(1, 0), newDetection(2, 1), newDetection(3, 1), newDetection(4, 1)}
	links := []Link{{Source: 1, Target: 2}, {Source: 1, Target: 3}, {Source: 1, Target: 4}}
	result, err := quietReconstructor().Reconstruct(detections, links)
	if err != nil {
		t.Fatal(err)
	}
	ids := trackIDs(t, result)
	if ids[2] != ids[1] {
		t.Errorf("First child should continue parent's track: %d, expected: %d", ids[2], ids[1])
	}
	if !(ids[3] > ids[2] && ids[4] > ids[3]) {
		t.Errorf("Later children should start strictly greater track ids: %v", ids)
	}
}

func TestReconstructPrunesOrphans(t *testing.T) {
	// 5 has no links at all. 6 -> 7 is a minimal stub track
	detections := []Detection{newDetection(1, 0), newDetection(2, 1), newDetection(5, 0), newDetection(6, 3), newDetection(7, 4)}
	links := []Link{{Source: 1, Target: 2}, {Source: 6, Target: 7}}
	result, err := quietReconstructor().Reconstruct(detections, links)
	if err != nil {
		t.Fatal(err)
	}
	if result.Pruned != 1 {
		t.Errorf("Wrong number of pruned detections: %d, expected: %d", result.Pruned, 1)
	}
	ids := trackIDs(t, result)
	if _, ok := ids[5]; ok {
		t.Error("Orphan detection must not appear in output")
	}
	expected := map[int]int{1: 1, 2: 1, 6: 2, 7: 2}
	if diff := cmp.Diff(expected, ids); diff != "" {
		t.Errorf("Wrong track ids (-want +got):\n%s", diff)
	}
}

func TestReconstructTrackIDsContiguous(t *testing.T) {
	detections := make([]Detection, 0)
	links := make([]Link, 0)
	// Ten lineages: each root splits in two
	for i := 0; i < 10; i++ {
		root := i * 10
		detections = append(detections, newDetection(root, i), newDetection(root+1, i+1), newDetection(root+2, i+1))
		links = append(links, Link{Source: root, Target: root + 1}, Link{Source: root, Target: root + 2})
	}
	result, err := quietReconstructor().Reconstruct(detections, links)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[int]struct{})
	for _, row := range result.Rows {
		if row.TrackID < 1 {
			t.Fatalf("Track id must be positive, got %d", row.TrackID)
		}
		seen[row.TrackID] = struct{}{}
	}
	for id := 1; id <= 20; id++ {
		if _, ok := seen[id]; !ok {
			t.Errorf("Track id %d is missing", id)
		}
	}
	if len(seen) != 20 || result.Tracks != 20 {
		t.Errorf("Wrong number of tracks: %d (%d), expected: %d", len(seen), result.Tracks, 20)
	}
}

func TestReconstructUnknownDetection(t *testing.T) {
	detections := []Detection{newDetection(1, 0)}
	links := []Link{{Source: 1, Target: 42}}
	_, err := quietReconstructor().Reconstruct(detections, links)
	if err == nil {
		t.Fatal("Expected error on link to unknown detection")
	}
	if !errors.Is(err, ErrBadInput) {
		t.Errorf("Error should be ErrBadInput, got %v", err)
	}
	if errors.Is(err, ErrInvariant) {
		t.Errorf("Error should not be ErrInvariant, got %v", err)
	}
}

func TestReconstructDuplicateDetection(t *testing.T) {
	detections := []Detection{newDetection(1, 0), newDetection(1, 1)}
	_, err := quietReconstructor().Reconstruct(detections, nil)
	if !errors.Is(err, ErrBadInput) {
		t.Errorf("Error should be ErrBadInput, got %v", err)
	}
}

func TestReconstructFilenameKeyAndFrames(t *testing.T) {
	detections := []Detection{newDetection(5, 0), newDetection(12, 1), newDetection(105, 9)}
	detections[2].Contour = nil
	links := []Link{{Source: 5, Target: 12}, {Source: 12, Target: 105}}
	result, err := quietReconstructor().Reconstruct(detections, links)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("Wrong number of rows: %d, expected: %d", len(result.Rows), 2)
	}
	// Width of detection id field still counts the dropped detection 105
	expectedKeys := []string{"01-1-005", "02-1-012"}
	expectedFrames := []int{1, 2}
	for i, row := range result.Rows {
		if row.FilenameKey != expectedKeys[i] {
			t.Errorf("Wrong key: %s, expected: %s", row.FilenameKey, expectedKeys[i])
		}
		if row.FrameID != expectedFrames[i] {
			t.Errorf("Wrong frame id: %d, expected: %d", row.FrameID, expectedFrames[i])
		}
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("Wrong number of warnings: %d, expected: %d", len(result.Warnings), 1)
	}
	if result.Warnings[0].Kind != WarningMissingROI || result.Warnings[0].DetectionID != 105 {
		t.Errorf("Wrong warning: %v", result.Warnings[0])
	}
}

func TestReconstructAbsoluteROI(t *testing.T) {
	first := newDetection(1, 0)
	first.Position = geom.Point{X: 100, Y: 50}
	first.Attributes = map[string]float64{"QUALITY": 3.5}
	second := newDetection(2, 1)
	result, err := quietReconstructor().Reconstruct([]Detection{first, second}, []Link{{Source: 1, Target: 2}})
	if err != nil {
		t.Fatal(err)
	}
	expected := Row{
		DetectionID: 1,
		Label:       first.Label,
		TrackID:     1,
		FrameID:     1,
		Position:    geom.Point{X: 100, Y: 50},
		Attributes:  map[string]float64{"QUALITY": 3.5},
		FilenameKey: "1-1-1",
		ROI:         geom.Polygon{{X: 99, Y: 49}, {X: 101, Y: 49}, {X: 101, Y: 51}, {X: 99, Y: 51}},
	}
	if diff := cmp.Diff(expected, result.Rows[0]); diff != "" {
		t.Errorf("Wrong row (-want +got):\n%s", diff)
	}
}

func TestReconstructLongLineage(t *testing.T) {
	n := 200000
	detections := make([]Detection, n)
	links := make([]Link, n-1)
	for i := 0; i < n; i++ {
		detections[i] = Detection{ID: i, Frame: i, Contour: geom.Polygon{{X: 0, Y: 0}}}
		if i > 0 {
			links[i-1] = Link{Source: i - 1, Target: i}
		}
	}
	result, err := quietReconstructor().Reconstruct(detections, links)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Rows) != n {
		t.Fatalf("Wrong number of rows: %d, expected: %d", len(result.Rows), n)
	}
	if result.Tracks != 1 {
		t.Errorf("Wrong number of tracks: %d, expected: %d", result.Tracks, 1)
	}
}

func TestReconstructCyclicLinks(t *testing.T) {
	// 1 -> 2 -> 3 -> 2 loops back. 8 <-> 9 has no root at all
	detections := []Detection{newDetection(1, 0), newDetection(2, 1), newDetection(3, 2), newDetection(8, 0), newDetection(9, 1)}
	links := []Link{{Source: 1, Target: 2}, {Source: 2, Target: 3}, {Source: 3, Target: 2}, {Source: 8, Target: 9}, {Source: 9, Target: 8}}
	result, err := quietReconstructor().Reconstruct(detections, links)
	if err != nil {
		t.Fatal(err)
	}
	expected := map[int]int{1: 1, 2: 1, 3: 1}
	if diff := cmp.Diff(expected, trackIDs(t, result)); diff != "" {
		t.Errorf("Wrong track ids (-want +got):\n%s", diff)
	}
	kinds := make([]WarningKind, 0, len(result.Warnings))
	for _, warning := range result.Warnings {
		kinds = append(kinds, warning.Kind)
	}
	if diff := cmp.Diff([]WarningKind{WarningUnreachable, WarningUnreachable}, kinds); diff != "" {
		t.Errorf("Wrong warnings (-want +got):\n%s", diff)
	}
}

func TestReconstructIdempotent(t *testing.T) {
	detections := []Detection{newDetection(1, 0), newDetection(2, 1), newDetection(3, 2), newDetection(4, 2)}
	links := []Link{{Source: 1, Target: 2}, {Source: 2, Target: 3}, {Source: 2, Target: 4}}
	reconstructor := quietReconstructor()
	first, err := reconstructor.Reconstruct(detections, links)
	if err != nil {
		t.Fatal(err)
	}
	second, err := reconstructor.Reconstruct(detections, links)
	if err != nil {
		t.Fatal(err)
	}
	if first.RunID == second.RunID {
		t.Error("Every run should get its own id")
	}
	if diff := cmp.Diff(first, second, cmpopts.IgnoreFields(Result{}, "RunID")); diff != "" {
		t.Errorf("Results differ (-first +second):\n%s", diff)
	}
}
