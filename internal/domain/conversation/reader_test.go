package conversation

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/carechat/internal/domain/patient"
)

func TestReader_InvalidID(t *testing.T) {
	f := newFixture()
	_, err := NewReader(f.store).Transcript(context.Background(), "abc")
	expectKind(t, err, KindInvalidInput)
}

func TestReader_UnknownPatient(t *testing.T) {
	f := newFixture()
	_, err := NewReader(f.store).Transcript(context.Background(), uuid.NewString())
	expectKind(t, err, KindPatientNotFound)
}

func TestReader_StorageFailure(t *testing.T) {
	r := NewReader(&brokenStore{err: errors.New("pool closed")})
	_, err := r.Transcript(context.Background(), uuid.NewString())
	expectKind(t, err, KindStorage)
}

func TestReader_RepeatedReadsAreIdentical(t *testing.T) {
	f := newFixture()
	p := f.createPatient(t, "Jane Doe", "")
	if _, err := f.gateway(replying("ok")).Handle(context.Background(), p.ID.String(), "hello"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	r := NewReader(f.store)
	first, err := r.Transcript(context.Background(), p.ID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := r.Transcript(context.Background(), p.ID.String())
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical snapshots, got %+v and %+v", first, second)
	}
}

func TestReader_PatientChatsMapsNotFound(t *testing.T) {
	f := newFixture()
	r := NewReader(f.store)

	if _, err := r.PatientChats(context.Background(), uuid.New()); !errors.Is(err, patient.ErrNotFound) {
		t.Errorf("expected patient.ErrNotFound, got %v", err)
	}

	p := f.createPatient(t, "Jane Doe", "")
	chats, err := r.PatientChats(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgs, ok := chats.([]Message); !ok || len(msgs) != 0 {
		t.Errorf("expected empty []Message, got %#v", chats)
	}
}

type brokenStore struct{ err error }

func (s *brokenStore) Append(context.Context, uuid.UUID, Sender, string) (*Message, error) {
	return nil, s.err
}

func (s *brokenStore) ListByPatient(context.Context, uuid.UUID) ([]Message, error) {
	return nil, s.err
}
