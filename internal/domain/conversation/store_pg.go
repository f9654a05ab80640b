package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/carechat/internal/platform/db"
)

const pgForeignKeyViolation = "23503"

type storePG struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (s *storePG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, s.pool)
}

// Append inserts only when the patient row exists. created_at never goes
// below the newest message already stored for the patient, so clock skew
// between connections cannot reorder a transcript.
func (s *storePG) Append(ctx context.Context, patientID uuid.UUID, sender Sender, content string) (*Message, error) {
	if !sender.Valid() {
		return nil, fmt.Errorf("chat message append: invalid sender %q", sender)
	}
	if content == "" {
		return nil, errors.New("chat message append: empty content")
	}

	m := &Message{ID: uuid.New(), PatientID: patientID, Sender: sender, Content: content}
	err := s.conn(ctx).QueryRow(ctx, `
		INSERT INTO chat_message (id, patient_id, sender, content, created_at)
		SELECT $1, p.id, $3, $4, GREATEST(
			clock_timestamp(),
			(SELECT max(created_at) FROM chat_message WHERE patient_id = p.id)
		)
		FROM patient p
		WHERE p.id = $2
		RETURNING created_at`,
		m.ID, patientID, string(sender), content,
	).Scan(&m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			// Patient deleted between the existence check and the insert.
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("chat message append: %w", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

// ListByPatient reads the patient row and its messages in one statement so an
// unknown patient is told apart from an empty transcript.
func (s *storePG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Message, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT m.id, m.sender, m.content, m.created_at
		FROM patient p
		LEFT JOIN chat_message m ON m.patient_id = p.id
		WHERE p.id = $1
		ORDER BY m.created_at ASC, m.seq ASC`,
		patientID,
	)
	if err != nil {
		return nil, fmt.Errorf("chat message list: %w", err)
	}
	defer rows.Close()

	found := false
	out := []Message{}
	for rows.Next() {
		found = true
		var (
			id        *uuid.UUID
			sender    *string
			content   *string
			createdAt *time.Time
		)
		if err := rows.Scan(&id, &sender, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("chat message scan: %w", err)
		}
		if id == nil {
			continue
		}
		out = append(out, Message{
			ID:        *id,
			PatientID: patientID,
			Sender:    Sender(*sender),
			Content:   *content,
			CreatedAt: createdAt.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat message list: %w", err)
	}
	if !found {
		return nil, ErrPatientNotFound
	}
	return out, nil
}
