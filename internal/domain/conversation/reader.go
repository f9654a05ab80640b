package conversation

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/carechat/internal/domain/patient"
)

// Reader serves transcripts to polling clients. Every call returns a
// complete snapshot, so clients can simply replace what they hold.
type Reader struct {
	store Store
}

func NewReader(store Store) *Reader {
	return &Reader{store: store}
}

func (r *Reader) Transcript(ctx context.Context, rawPatientID string) ([]Message, error) {
	patientID, err := uuid.Parse(strings.TrimSpace(rawPatientID))
	if err != nil {
		return nil, invalid("patientId", "Invalid uuid")
	}
	msgs, err := r.store.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, storeError(err)
	}
	return msgs, nil
}

// PatientChats adapts the reader to patient.TranscriptFunc, reporting an
// unknown patient as patient.ErrNotFound.
func (r *Reader) PatientChats(ctx context.Context, patientID uuid.UUID) (any, error) {
	msgs, err := r.store.ListByPatient(ctx, patientID)
	if errors.Is(err, ErrPatientNotFound) {
		return nil, patient.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return msgs, nil
}
