package inference

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMockReply(t *testing.T) {
	got := MockReply("Is the crown ready?", "Jane Doe")
	want := "Hello! As a dental assistant, I verify that I received your message: 'Is the crown ready?'. How can I help Jane Doe today?"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !strings.HasSuffix(MockReply("x", ""), "How can I help the patient today?") {
		t.Error("expected generic patient name when none is given")
	}
}

func TestMockBackend_RoundTripThroughHTTPClient(t *testing.T) {
	srv := httptest.NewServer(NewMockBackend())
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/generate", time.Second, zerolog.Nop())
	reply, err := c.Ask(context.Background(), "hello", PatientContext{ID: "p1", Name: "Jane Doe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != MockReply("hello", "Jane Doe") {
		t.Errorf("unexpected reply %q", reply)
	}
}

func TestMockBackend_RejectsMissingMessage(t *testing.T) {
	e := NewMockBackend()
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"patient_context":{"name":"x"}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}
