package metrics

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestRecordersDoNotPanic(t *testing.T) {
	RecordEventApplied("applied")
	RecordShadowOrderEmitted("D", "SHDW1")
	RecordReplication("rule-1")
	RecordRejection("locate")
	RecordLocateTransition("PENDING")
	ObserveHandlerLatency("replicate.HandleNewOrder", 5*time.Millisecond)
	IncWorkerPoolSubmitted()
}

func TestHandlerServesPrometheusFormat(t *testing.T) {
	RecordEventApplied("applied")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected non-empty metrics body")
	}
}
