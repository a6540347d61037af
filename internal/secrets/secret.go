package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/keyvault/azsecrets"
	"github.com/kvenv/kvenv/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/kvenv/kvenv/internal/secrets"

// ErrMissingValue is returned when the vault responds successfully but the
// response body has no secret value.
var ErrMissingValue = errors.New("response has no secret value")

// Client is the subset of *azsecrets.Client used to fetch secrets.
type Client interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// Secret represents a fetched secret with its name and value.
type Secret struct {
	Name  string
	Value string
}

// ResponseError is returned when the vault responds with a non-success
// status. It summarises the underlying *azcore.ResponseError, whose own
// message includes the full response.
type ResponseError struct {
	StatusCode int
	ErrorCode  string

	err error
}

func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("key vault responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.ErrorCode != "" {
		msg += " (" + e.ErrorCode + ")"
	}
	return msg
}

func (e *ResponseError) Unwrap() error {
	return e.err
}

// FetchSecrets retrieves the latest version of every named secret
// concurrently. Results are returned in the same order as names.
//
// If any fetch fails, the remaining fetches are cancelled and the first error
// is returned; no partial results are returned. maxConcurrency limits the
// number of requests in flight, and 0 means every request starts at once.
func FetchSecrets(ctx context.Context, l logger.Logger, client Client, names []string, maxConcurrency int) ([]Secret, error) {
	if len(names) == 0 {
		return nil, nil
	}

	// Each goroutine owns exactly one slot.
	secrets := make([]Secret, len(names))

	g, ctx := errgroup.WithContext(ctx)
	if maxConcurrency > 0 {
		g.SetLimit(maxConcurrency)
	}

	for i, name := range names {
		g.Go(func() error {
			start := time.Now()

			value, err := fetchSecret(ctx, client, name)
			if err != nil {
				// Include secret name (never values) in error messages for debugging
				return fmt.Errorf("secret %q: %w", name, err)
			}

			l.WithFields(
				logger.StringField("secret", name),
				logger.DurationField("took", time.Since(start)),
			).Debug("Fetched secret")
			secrets[i] = Secret{Name: name, Value: value}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return secrets, nil
}

func fetchSecret(ctx context.Context, client Client, name string) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "keyvault.get_secret",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("keyvault.secret.name", name)),
	)
	defer span.End()

	// An empty version asks for the latest version.
	resp, err := client.GetSecret(ctx, name, "", nil)
	if err != nil {
		var azErr *azcore.ResponseError
		if errors.As(err, &azErr) {
			err = &ResponseError{StatusCode: azErr.StatusCode, ErrorCode: azErr.ErrorCode, err: err}
			span.SetAttributes(attribute.Int("http.response.status_code", azErr.StatusCode))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetching secret failed")
		return "", err
	}

	if resp.Value == nil {
		span.SetStatus(codes.Error, ErrMissingValue.Error())
		return "", ErrMissingValue
	}

	return *resp.Value, nil
}
