package conversation

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/carechat/internal/domain/patient"
	"github.com/ehr/carechat/internal/platform/inference"
	"github.com/ehr/carechat/internal/platform/websocket"
)

func strp(s string) *string { return &s }

type fixture struct {
	patients *patient.Service
	repo     *patient.MemoryRepo
	store    *MemoryStore
}

func newFixture() *fixture {
	repo := patient.NewMemoryRepo()
	store := NewMemoryStore(repo)
	repo.OnDelete(store.Forget)
	return &fixture{patients: patient.NewService(repo), repo: repo, store: store}
}

func (f *fixture) createPatient(t *testing.T, name, notes string) *patient.Patient {
	t.Helper()
	in := patient.Input{
		Name:  strp(name),
		Email: strp("jane@example.com"),
		Phone: strp("5551234567"),
		DOB:   strp("1985-06-01"),
	}
	if notes != "" {
		in.MedicalNotes = strp(notes)
	}
	p, err := f.patients.CreatePatient(context.Background(), in)
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}

func (f *fixture) gateway(a Assistant, opts ...GatewayOption) *Gateway {
	return NewGateway(f.patients, f.store, a, zerolog.Nop(), opts...)
}

// assistantFunc adapts a function to Assistant and counts calls.
type assistantFunc struct {
	mu    sync.Mutex
	calls int
	ctxs  []context.Context
	pcs   []inference.PatientContext
	fn    func(ctx context.Context, message string) (string, error)
}

func (a *assistantFunc) Ask(ctx context.Context, message string, pc inference.PatientContext) (string, error) {
	a.mu.Lock()
	a.calls++
	a.ctxs = append(a.ctxs, ctx)
	a.pcs = append(a.pcs, pc)
	a.mu.Unlock()
	return a.fn(ctx, message)
}

func replying(text string) *assistantFunc {
	return &assistantFunc{fn: func(context.Context, string) (string, error) { return text, nil }}
}

func failing(kind inference.Kind) *assistantFunc {
	return &assistantFunc{fn: func(context.Context, string) (string, error) {
		return "", &inference.Failure{Kind: kind}
	}}
}

// flakyStore fails appends for the chosen sender.
type flakyStore struct {
	Store
	failSender Sender
	err        error
}

func (s *flakyStore) Append(ctx context.Context, patientID uuid.UUID, sender Sender, content string) (*Message, error) {
	if sender == s.failSender {
		return nil, s.err
	}
	return s.Store.Append(ctx, patientID, sender, content)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e websocket.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func mustList(t *testing.T, s Store, id uuid.UUID) []Message {
	t.Helper()
	msgs, err := s.ListByPatient(context.Background(), id)
	if err != nil {
		t.Fatalf("list transcript: %v", err)
	}
	return msgs
}

func expectKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if got := KindOf(err); got != want {
		t.Fatalf("expected kind %q, got %q (%v)", want, got, err)
	}
}
