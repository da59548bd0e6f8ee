// Package store persists the application state as a single JSON document
// holding the users and teams collections.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// ErrUnavailable is returned when the persisted document cannot be read,
// decoded, or written.
var ErrUnavailable = errors.New("store unavailable")

// Backend holds the raw encoded document. Update must run fn and persist its
// result as one exclusive section with respect to other writers of the same
// document, and must return errors produced by fn unchanged.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Update(ctx context.Context, fn func(current []byte) ([]byte, error)) error
	// Ensure creates the document with seed when it does not exist yet.
	Ensure(ctx context.Context, seed []byte) (bool, error)
	Close() error
}

// Store loads and replaces the document on top of a Backend.
type Store struct {
	backend Backend
	writers *semaphore.Weighted
	logger  *slog.Logger
	metrics *metrics
	tracer  trace.Tracer
}

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger used for store events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegisterer enables prometheus metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Store) {
		s.metrics = newMetrics(reg)
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

const tracerName = "github.com/Mutairu-Lawal/pro-manage/internal/store"

// Open prepares the backend, creating an empty document when none exists.
func Open(ctx context.Context, backend Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("store backend is required")
	}
	s := &Store{
		backend: backend,
		writers: semaphore.NewWeighted(1),
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	seed, err := encodeDocument(EmptyDocument())
	if err != nil {
		return nil, err
	}
	created, err := backend.Ensure(ctx, seed)
	if err != nil {
		return nil, unavailable("initialize document", err)
	}
	if created {
		s.logger.Info("initialized empty document")
	}
	return s, nil
}

// Load returns the current document. It takes no lock; a concurrent writer
// is observed either fully or not at all.
func (s *Store) Load(ctx context.Context) (doc Document, err error) {
	ctx, finish := s.begin(ctx, "load")
	defer func() { finish(err) }()

	data, err := s.backend.Read(ctx)
	if err != nil {
		return Document{}, unavailable("read document", err)
	}
	doc, err = decodeDocument(data)
	if err != nil {
		return Document{}, unavailable("decode document", err)
	}
	return doc, nil
}

// Replace overwrites the persisted document with doc.
func (s *Store) Replace(ctx context.Context, doc Document) (err error) {
	ctx, finish := s.begin(ctx, "replace")
	defer func() { finish(err) }()

	data, err := encodeDocument(doc)
	if err != nil {
		return unavailable("encode document", err)
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.writers.Release(1)

	if err := s.backend.Write(ctx, data); err != nil {
		return unavailable("write document", err)
	}
	return nil
}

type mutationError struct{ err error }

func (e mutationError) Error() string { return e.err.Error() }
func (e mutationError) Unwrap() error { return e.err }

// Update loads the document, applies fn and persists the result in one
// exclusive section. Errors returned by fn abort the update without writing
// and are returned unchanged.
func (s *Store) Update(ctx context.Context, fn func(doc *Document) error) (err error) {
	ctx, finish := s.begin(ctx, "update")
	defer func() { finish(err) }()

	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.writers.Release(1)

	err = s.backend.Update(ctx, func(current []byte) ([]byte, error) {
		doc, err := decodeDocument(current)
		if err != nil {
			return nil, unavailable("decode document", err)
		}
		if err := fn(&doc); err != nil {
			return nil, mutationError{err: err}
		}
		data, err := encodeDocument(doc)
		if err != nil {
			return nil, unavailable("encode document", err)
		}
		return data, nil
	})
	if err == nil {
		return nil
	}
	var mutErr mutationError
	if errors.As(err, &mutErr) {
		return mutErr.err
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return unavailable("update document", err)
}

// Ping verifies the document can be read and decoded.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.Load(ctx)
	return err
}

// Close releases backend resources.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) acquire(ctx context.Context) error {
	if err := s.writers.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire store lock: %w", err)
	}
	return nil
}

func (s *Store) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "store."+op, trace.WithAttributes(attribute.String("store.op", op)))
	return ctx, func(err error) {
		// Errors from mutators are domain outcomes, not store failures.
		if !errors.Is(err, ErrUnavailable) {
			err = nil
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Error("store operation failed", "op", op, "error", err)
		}
		s.metrics.observe(op, start, err)
		span.End()
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
