package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names a job type on the wire.
type Kind string

const (
	KindTranscode          Kind = "transcode"
	KindActivationEmail    Kind = "activation_email"
	KindPasswordResetEmail Kind = "password_reset_email"
)

var (
	// ErrUnknownKind indicates no handler is registered for an envelope's kind.
	ErrUnknownKind = errors.New("unknown job kind")
	// ErrSubmitterClosed indicates the submitter no longer accepts jobs.
	ErrSubmitterClosed = errors.New("job submitter closed")
)

// Job is a payload that can be submitted for background execution.
type Job interface {
	Kind() Kind
}

// TranscodeJob asks for the HLS renditions of a video's source file.
type TranscodeJob struct {
	VideoID    int64  `json:"video_id"`
	SourcePath string `json:"source_path"`
	Overwrite  bool   `json:"overwrite,omitempty"`
}

func (TranscodeJob) Kind() Kind { return KindTranscode }

// ActivationEmailJob sends the account activation link.
type ActivationEmailJob struct {
	Email string `json:"email"`
	UID   string `json:"uidb64"`
	Token string `json:"token"`
}

func (ActivationEmailJob) Kind() Kind { return KindActivationEmail }

// PasswordResetEmailJob sends the password reset link.
type PasswordResetEmailJob struct {
	Email string `json:"email"`
	UID   string `json:"uidb64"`
	Token string `json:"token"`
}

func (PasswordResetEmailJob) Kind() Kind { return KindPasswordResetEmail }

// Envelope is the serialized form of a job on the queue.
type Envelope struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a job with a fresh id.
func NewEnvelope(job Job) (Envelope, error) {
	if job == nil {
		return Envelope{}, errors.New("job must not be nil")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s job: %w", job.Kind(), err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Kind:       job.Kind(),
		EnqueuedAt: time.Now().UTC(),
		Payload:    payload,
	}, nil
}

// Handler executes the payload of one envelope.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Handle adapts a typed job function into a Handler.
func Handle[T Job](fn func(context.Context, T) error) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var job T
		if err := json.Unmarshal(payload, &job); err != nil {
			return fmt.Errorf("decode %s payload: %w", job.Kind(), err)
		}
		return fn(ctx, job)
	}
}

// Registry maps job kinds to handlers. It is shared by the inline submitter and the
// queue worker so a job behaves the same either way.
type Registry struct {
	handlers map[Kind]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Kind]Handler)}
}

// Register installs the handler for kind, replacing any previous one.
func (r *Registry) Register(kind Kind, handler Handler) {
	r.handlers[kind] = handler
}

// Dispatch runs the handler registered for the envelope's kind.
func (r *Registry) Dispatch(ctx context.Context, env Envelope) error {
	handler, ok := r.handlers[env.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	return handler(ctx, env.Payload)
}
