package producer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap/zaptest"

	"github.com/boyangli/landfillmap-producer/models"
)

func sampleEstimates() []models.DetectionEstimate {
	region := models.RegionVojvodina
	return []models.DetectionEstimate{
		{
			ImageID:          "img1",
			Category:         "illegal",
			LandfillCategory: models.CategoryIllegal,
			Confidence:       0.9,
			KnownSiteName:    "Deponija Novi Sad",
			ParsedRegion:     &region,
			HasSegmentation:  true,
			BoundsNW:         models.LatLon{Lat: 45.0, Lon: 19.0},
			BoundsSE:         models.LatLon{Lat: 44.9, Lon: 19.2},
			CenterLat:        44.95,
			CenterLon:        19.1,
			SurfaceAreaM2:    1500,
			CH4TonnesPerYear: 12.5,
		},
		{
			ImageID:          "img2",
			Category:         "sanitary",
			LandfillCategory: models.CategorySanitary,
			Confidence:       0.8,
			BoundsNW:         models.LatLon{Lat: 44.0, Lon: 20.0},
			BoundsSE:         models.LatLon{Lat: 43.9, Lon: 20.1},
		},
	}
}

func TestNewEstimateMessage(t *testing.T) {
	e := sampleEstimates()[0]
	msg, err := NewEstimateMessage("landfill-detections", "run-1", &e)
	if err != nil {
		t.Fatalf("NewEstimateMessage failed: %v", err)
	}

	if string(msg.Key) != "img1" {
		t.Errorf("Expected key img1, got %s", msg.Key)
	}
	if *msg.TopicPartition.Topic != "landfill-detections" {
		t.Errorf("Unexpected topic %s", *msg.TopicPartition.Topic)
	}

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	expected := map[string]string{
		HeaderRunID:    "run-1",
		HeaderCategory: "illegal",
		HeaderRegion:   "vojvodina",
	}
	for k, v := range expected {
		if headers[k] != v {
			t.Errorf("Header %s = %q, expected %q", k, headers[k], v)
		}
	}

	decoded, err := models.FromJSON(msg.Value)
	if err != nil {
		t.Fatalf("Payload is not a valid estimate: %v", err)
	}
	if decoded.ImageID != e.ImageID || decoded.CH4TonnesPerYear != e.CH4TonnesPerYear {
		t.Errorf("Payload mismatch: %+v", decoded)
	}
}

func TestNewEstimateMessageWithoutRegion(t *testing.T) {
	e := sampleEstimates()[1]
	msg, err := NewEstimateMessage("t", "run-1", &e)
	if err != nil {
		t.Fatalf("NewEstimateMessage failed: %v", err)
	}
	for _, h := range msg.Headers {
		if h.Key == HeaderRegion && len(h.Value) != 0 {
			t.Errorf("Expected empty region header, got %q", h.Value)
		}
	}
}

func deliveryReport(imageID string, err error) *kafka.Message {
	topic := "landfill-detections"
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Error: err},
		Key:            []byte(imageID),
	}
}

func TestAwaitDeliveriesCountsOnlyAcknowledged(t *testing.T) {
	kp := &KafkaProducer{logger: zaptest.NewLogger(t)}
	reports := make(chan kafka.Event, 3)
	reports <- deliveryReport("img1", nil)
	reports <- deliveryReport("img2", kafka.NewError(kafka.ErrMsgTimedOut, "message timed out", false))
	reports <- deliveryReport("img3", nil)

	acked, failed, pending := kp.awaitDeliveries(reports, 3, time.Second)
	if acked != 2 || failed != 1 || pending != 0 {
		t.Errorf("Expected 2 acked, 1 failed, 0 pending, got %d/%d/%d", acked, failed, pending)
	}

	m := kp.GetMetrics()
	if m["messages_acked"] != 2 || m["messages_failed"] != 1 {
		t.Errorf("Unexpected producer metrics: %v", m)
	}
}

func TestAwaitDeliveriesTimeout(t *testing.T) {
	kp := &KafkaProducer{logger: zaptest.NewLogger(t)}
	reports := make(chan kafka.Event, 2)
	reports <- deliveryReport("img1", nil)

	acked, failed, pending := kp.awaitDeliveries(reports, 2, 20*time.Millisecond)
	if acked != 1 || failed != 0 || pending != 1 {
		t.Errorf("Expected 1 acked, 0 failed, 1 pending, got %d/%d/%d", acked, failed, pending)
	}
}

func TestGeoJSONWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "estimates.geojson")
	w := NewGeoJSONWriter(path, zaptest.NewLogger(t))

	n, err := w.Write(context.Background(), "run-1", sampleEstimates())
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 accepted, got %d", n)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatalf("Output is not a feature collection: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("Expected 2 features, got %d", len(fc.Features))
	}

	f := fc.Features[0]
	if f.ID != "img1" {
		t.Errorf("Expected feature id img1, got %v", f.ID)
	}
	if f.Properties["run_id"] != "run-1" || f.Properties["region"] != "vojvodina" {
		t.Errorf("Unexpected properties: %v", f.Properties)
	}
	if f.Properties["surface_area_m2"] != 1500.0 {
		t.Errorf("Expected surface area 1500, got %v", f.Properties["surface_area_m2"])
	}
	if _, ok := fc.Features[1].Properties["region"]; ok {
		t.Error("Expected no region property for an unknown region")
	}

	b := f.Geometry.Bound()
	if b.Min.Lon() != 19.0 || b.Max.Lon() != 19.2 || b.Min.Lat() != 44.9 || b.Max.Lat() != 45.0 {
		t.Errorf("Unexpected feature bound %+v", b)
	}
}

func TestGeoJSONWriterReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "estimates.geojson")
	w := NewGeoJSONWriter(path, nil)

	if _, err := w.Write(context.Background(), "run-1", sampleEstimates()); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if _, err := w.Write(context.Background(), "run-2", sampleEstimates()[:1]); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatalf("Invalid output: %v", err)
	}
	if len(fc.Features) != 1 {
		t.Errorf("Expected the second run to replace the file, got %d features", len(fc.Features))
	}
}

func TestGeoJSONWriterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "estimates.geojson")
	if _, err := NewGeoJSONWriter(path, nil).Write(ctx, "run-1", sampleEstimates()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected no output file after cancellation")
	}
}

type fakeSink struct {
	accept int
	err    error
	calls  int
}

func (s *fakeSink) Write(_ context.Context, _ string, estimates []models.DetectionEstimate) (int, error) {
	s.calls++
	if s.accept > len(estimates) {
		return len(estimates), s.err
	}
	return s.accept, s.err
}

func TestMultiSink(t *testing.T) {
	estimates := sampleEstimates()

	tests := []struct {
		name         string
		sinks        []*fakeSink
		wantAccepted int
		wantErr      bool
	}{
		{"all accept", []*fakeSink{{accept: 2}, {accept: 2}}, 2, false},
		{"partial", []*fakeSink{{accept: 2}, {accept: 1}}, 1, false},
		{"one fails", []*fakeSink{{accept: 0, err: errors.New("boom")}, {accept: 2}}, 0, true},
		{"empty", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m MultiSink
			for _, s := range tt.sinks {
				m = append(m, s)
			}

			n, err := m.Write(context.Background(), "run-1", estimates)
			if n != tt.wantAccepted {
				t.Errorf("accepted = %d, expected %d", n, tt.wantAccepted)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			for i, s := range tt.sinks {
				if s.calls != 1 {
					t.Errorf("sink %d called %d times, expected 1", i, s.calls)
				}
			}
		})
	}
}
