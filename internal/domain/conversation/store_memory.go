package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PatientChecker reports whether a patient exists. *patient.MemoryRepo
// satisfies it.
type PatientChecker interface {
	Exists(id uuid.UUID) bool
}

// MemoryStore keeps transcripts in process memory. It backs
// STORAGE_DRIVER=memory and the package tests.
type MemoryStore struct {
	mu       sync.RWMutex
	patients PatientChecker
	byID     map[uuid.UUID][]Message
	now      func() time.Time
}

func NewMemoryStore(patients PatientChecker) *MemoryStore {
	return &MemoryStore{
		patients: patients,
		byID:     make(map[uuid.UUID][]Message),
		now:      time.Now,
	}
}

// Append checks the patient and inserts under the store lock. A concurrent
// patient delete either happens first (ErrPatientNotFound) or its Forget
// hook waits for the lock and removes the new message.
func (s *MemoryStore) Append(_ context.Context, patientID uuid.UUID, sender Sender, content string) (*Message, error) {
	if !sender.Valid() {
		return nil, fmt.Errorf("chat message append: invalid sender %q", sender)
	}
	if content == "" {
		return nil, errors.New("chat message append: empty content")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.patients.Exists(patientID) {
		return nil, ErrPatientNotFound
	}

	createdAt := s.now().UTC()
	transcript := s.byID[patientID]
	if n := len(transcript); n > 0 && createdAt.Before(transcript[n-1].CreatedAt) {
		createdAt = transcript[n-1].CreatedAt
	}

	m := Message{
		ID:        uuid.New(),
		PatientID: patientID,
		Sender:    sender,
		Content:   content,
		CreatedAt: createdAt,
	}
	s.byID[patientID] = append(transcript, m)
	return &m, nil
}

// ListByPatient returns a copy. createdAt is clamped on append, so slice
// order is already transcript order.
func (s *MemoryStore) ListByPatient(_ context.Context, patientID uuid.UUID) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.patients.Exists(patientID) {
		return nil, ErrPatientNotFound
	}

	out := make([]Message, len(s.byID[patientID]))
	copy(out, s.byID[patientID])
	return out, nil
}

// Forget drops every message for patientID. Wire it to the patient
// repository's delete hook to mirror the database cascade.
func (s *MemoryStore) Forget(patientID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, patientID)
}
