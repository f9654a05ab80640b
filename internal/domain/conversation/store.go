package conversation

import (
	"context"

	"github.com/google/uuid"
)

// Store is the append-only per-patient transcript.
type Store interface {
	// Append persists one message and returns it with its id and createdAt
	// set. It fails with ErrPatientNotFound when the patient does not exist
	// at write time.
	Append(ctx context.Context, patientID uuid.UUID, sender Sender, content string) (*Message, error)
	// ListByPatient returns the full transcript ordered by createdAt, ties
	// broken by insertion order. Unknown patients yield ErrPatientNotFound.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Message, error)
}
