package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeInputs(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"classification.csv": "image_name,predicted_label,confidence\nimg1,illegal,0.9\n",
		"segmentation.csv":   "image_name,confidence,polygon_px\nimg1,0.8,\"100,100;540,100;540,540\"\n",
		"metadata.csv":       "id,image_name,landfill_name,municipality,nw_lat,nw_lon,se_lat,se_lon,region,zoom\n1,img1,A,X,45.0,19.0,44.9,19.2,Vojvodina,\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}
	return dir, []string{
		"-classification", filepath.Join(dir, "classification.csv"),
		"-segmentation", filepath.Join(dir, "segmentation.csv"),
		"-metadata", filepath.Join(dir, "metadata.csv"),
	}
}

func TestRunWritesGeoJSON(t *testing.T) {
	t.Setenv("METRICS_TEXTFILE", "")
	dir, args := writeInputs(t)
	out := filepath.Join(dir, "estimates.geojson")

	if code := run(append(args, "-geojson", out)); code != 0 {
		t.Fatalf("Expected exit code 0, got %d", code)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("Expected GeoJSON output: %v", err)
	}
}

func TestRunKafkaSetupFailureReturns(t *testing.T) {
	t.Setenv("METRICS_TEXTFILE", "")
	t.Setenv("KAFKA_COMPRESSION_TYPE", "not-a-codec")
	_, args := writeInputs(t)

	if code := run(append(args, "-publish")); code != 1 {
		t.Errorf("Expected exit code 1 for an invalid Kafka config, got %d", code)
	}
}

func TestRunMissingSource(t *testing.T) {
	t.Setenv("METRICS_TEXTFILE", "")
	_, args := writeInputs(t)
	args[len(args)-1] = filepath.Join(t.TempDir(), "missing.csv")

	if code := run(args); code != 1 {
		t.Errorf("Expected exit code 1 for a missing source, got %d", code)
	}
}

func TestRunBadFlag(t *testing.T) {
	if code := run([]string{"-no-such-flag"}); code != 2 {
		t.Errorf("Expected exit code 2 for an unknown flag, got %d", code)
	}
}
