package letter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/go-referral/pkg/circuitbreaker"
)

// FailurePlaceholder replaces the letter when generation fails
const FailurePlaceholder = "Error generating referral letter. Please try again."

// DefaultTimeout bounds a single generation call
const DefaultTimeout = 60 * time.Second

// ErrEmptyLetter is returned when the service replies without text
var ErrEmptyLetter = errors.New("text service returned an empty letter")

// Outcome labels a generation attempt
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeRejected Outcome = "rejected"
)

// Observer records generation outcomes
type Observer interface {
	ObserveGeneration(outcome Outcome, elapsed time.Duration)
}

// Generator renders a request into a prompt and calls the text service once.
// Failures are returned, never retried.
type Generator struct {
	client   Client
	breaker  *circuitbreaker.CircuitBreaker
	timeout  time.Duration
	observer Observer
	logger   *zap.Logger
	tracer   trace.Tracer
}

// GeneratorConfig configures a Generator
type GeneratorConfig struct {
	Timeout  time.Duration
	Breaker  *circuitbreaker.CircuitBreaker
	Observer Observer
}

// NewGenerator creates a generator over client
func NewGenerator(client Client, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Generator{
		client:   client,
		breaker:  cfg.Breaker,
		timeout:  cfg.Timeout,
		observer: cfg.Observer,
		logger:   logger,
		tracer:   otel.Tracer("letter-generator"),
	}
}

// Generate produces letter text for req
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := g.tracer.Start(ctx, "letter.generate",
		trace.WithAttributes(
			attribute.String("specialty", req.Specialty),
			attribute.Int("notes", len(req.SOAPNotes)),
			attribute.Int("labs", len(req.Labs)),
			attribute.Int("imaging", len(req.Imaging)),
		))
	defer span.End()

	prompt, err := RenderPrompt(req)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	call := func() (interface{}, error) {
		return g.client.Complete(ctx, prompt)
	}

	var result interface{}
	if g.breaker != nil {
		result, err = g.breaker.Execute(ctx, call)
	} else {
		result, err = call()
	}
	elapsed := time.Since(start)

	if err != nil {
		outcome := OutcomeFailure
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = OutcomeTimeout
		case circuitbreaker.IsOpenError(err):
			outcome = OutcomeRejected
		}
		g.observe(outcome, elapsed)
		span.RecordError(err)
		g.logger.Warn("letter generation failed",
			zap.String("outcome", string(outcome)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return "", fmt.Errorf("generate letter: %w", err)
	}

	text, _ := result.(string)
	if isBlank(text) {
		g.observe(OutcomeFailure, elapsed)
		return "", ErrEmptyLetter
	}

	g.observe(OutcomeSuccess, elapsed)
	span.SetAttributes(attribute.Int("letter.length", len(text)))
	return text, nil
}

func (g *Generator) observe(outcome Outcome, elapsed time.Duration) {
	if g.observer != nil {
		g.observer.ObserveGeneration(outcome, elapsed)
	}
}
