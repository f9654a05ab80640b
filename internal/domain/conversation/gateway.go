package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/carechat/internal/domain/patient"
	"github.com/ehr/carechat/internal/platform/inference"
	"github.com/ehr/carechat/internal/platform/metrics"
	"github.com/ehr/carechat/internal/platform/websocket"
)

// persistTimeout bounds the detached assistant-message write.
const persistTimeout = 10 * time.Second

// PatientLookup resolves a patient. *patient.Service satisfies it.
type PatientLookup interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Assistant produces a reply for a message. Providers in the inference
// package satisfy it.
type Assistant interface {
	Ask(ctx context.Context, message string, pc inference.PatientContext) (string, error)
}

// Gateway runs one conversation turn: store the user message, ask the
// assistant, store the reply. Inference failures never reach the caller; a
// fixed fallback reply is stored in their place.
type Gateway struct {
	patients  PatientLookup
	store     Store
	assistant Assistant
	events    websocket.EventPublisher
	logger    zerolog.Logger
}

type GatewayOption func(*Gateway)

// WithPublisher sends a change event after every successful append.
func WithPublisher(p websocket.EventPublisher) GatewayOption {
	return func(g *Gateway) { g.events = p }
}

func NewGateway(patients PatientLookup, store Store, assistant Assistant, logger zerolog.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		patients:  patients,
		store:     store,
		assistant: assistant,
		logger:    logger.With().Str("component", "conversation").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Handle(ctx context.Context, rawPatientID, message string) (*Reply, error) {
	reply, outcome, err := g.handle(ctx, rawPatientID, message)
	metrics.GatewayInvocations.WithLabelValues(outcome).Inc()
	return reply, err
}

func (g *Gateway) handle(ctx context.Context, rawPatientID, message string) (*Reply, string, error) {
	if message == "" {
		return nil, "invalid_input", invalid("message", "String must contain at least 1 character(s)")
	}
	patientID, err := uuid.Parse(strings.TrimSpace(rawPatientID))
	if err != nil {
		return nil, "invalid_input", invalid("patientId", "Invalid uuid")
	}

	p, err := g.patients.GetPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return nil, "patient_not_found", &Error{Kind: KindPatientNotFound, Err: err}
		}
		return nil, "storage_error", &Error{Kind: KindStorage, Err: fmt.Errorf("resolve patient: %w", err)}
	}

	userMsg, err := g.store.Append(ctx, patientID, SenderUser, message)
	if err != nil {
		cerr := storeError(err)
		return nil, outcomeFor(cerr.Kind), cerr
	}
	g.publish(ctx, userMsg)

	// From here the turn completes even if the caller goes away, so a stored
	// user message is not left without a reply because of a disconnect.
	detached := context.WithoutCancel(ctx)

	text, askErr := g.assistant.Ask(detached, message, patientContext(p))
	fallback := askErr != nil
	if fallback {
		kind := inferenceKind(askErr)
		text = FallbackReply(kind, message, p.Notes())
		g.logger.Warn().
			Err(askErr).
			Str("patient_id", patientID.String()).
			Str("kind", string(kind)).
			Msg("inference failed, storing fallback reply")
	}

	writeCtx, cancel := context.WithTimeout(detached, persistTimeout)
	defer cancel()

	assistantMsg, err := g.store.Append(writeCtx, patientID, SenderAssistant, text)
	if err != nil {
		metrics.OrphanedUserMessages.Inc()
		g.logger.Warn().
			Err(err).
			Str("patient_id", patientID.String()).
			Str("user_message_id", userMsg.ID.String()).
			Msg("assistant reply not stored, user message left without reply")
		cerr := storeError(err)
		return nil, outcomeFor(cerr.Kind), cerr
	}
	g.publish(detached, assistantMsg)

	outcome := "answered"
	if fallback {
		outcome = "fallback"
	}
	return &Reply{
		ResponseText:       text,
		UserMessageID:      userMsg.ID,
		AssistantMessageID: assistantMsg.ID,
		Fallback:           fallback,
	}, outcome, nil
}

func outcomeFor(kind Kind) string {
	if kind == KindPatientNotFound {
		return "patient_not_found"
	}
	return "storage_error"
}

func (g *Gateway) publish(ctx context.Context, m *Message) {
	if g.events == nil {
		return
	}
	err := g.events.Publish(ctx, websocket.Event{
		Type:         websocket.EventMessageCreated,
		Topic:        websocket.PatientTopic(m.PatientID.String()),
		ResourceType: "ChatMessage",
		ResourceID:   m.ID.String(),
		Timestamp:    m.CreatedAt,
	})
	if err != nil {
		g.logger.Debug().Err(err).Str("message_id", m.ID.String()).Msg("publish message event")
	}
}

// inferenceKind treats anything that is not a typed failure as a backend
// error.
func inferenceKind(err error) inference.Kind {
	if kind, ok := inference.KindOf(err); ok {
		return kind
	}
	return inference.KindBackendError
}

const (
	FallbackUnreachable  = "I'm having trouble connecting to the AI assistant right now. Please try again shortly."
	FallbackTimeout      = "The AI assistant took too long to respond. Please try again shortly."
	FallbackBackendError = "Sorry, I am unable to generate a response at this time."
)

// FallbackReply is the deterministic reply stored when inference fails with
// kind. The unconfigured placeholder echoes the message so development setups
// without a backend remain usable.
func FallbackReply(kind inference.Kind, message, notes string) string {
	switch kind {
	case inference.KindUnconfigured:
		return fmt.Sprintf("[MOCK AI] responding to: %s. Patient history length: %d", message, utf8.RuneCountInString(notes))
	case inference.KindUnreachable:
		return FallbackUnreachable
	case inference.KindTimeout:
		return FallbackTimeout
	default:
		return FallbackBackendError
	}
}

func patientContext(p *patient.Patient) inference.PatientContext {
	pc := inference.PatientContext{
		ID:           p.ID.String(),
		Name:         p.Name,
		MedicalNotes: p.Notes(),
	}
	if !p.DOB.IsZero() {
		dob := p.DOB
		pc.DOB = &dob
	}
	return pc
}
