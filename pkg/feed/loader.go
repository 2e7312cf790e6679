package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/vshn/downtime-switcher/pkg/types"
)

const (
	DefaultAttempts = 3
	DefaultPause    = 30 * time.Second
)

// Loader reads JSON documents from http(s) URLs or local files.
type Loader struct {
	Client   *http.Client
	Attempts uint64
	Pause    time.Duration

	log logr.Logger
}

func NewLoader(log logr.Logger, client *http.Client) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{
		Client:   client,
		Attempts: DefaultAttempts,
		Pause:    DefaultPause,
		log:      log,
	}
}

// Load decodes the document at source into v. Failed attempts are retried
// with a constant pause; the last error is returned as a
// ConfigurationFailure.
func (l *Loader) Load(ctx context.Context, source string, v any) error {
	attempts := l.Attempts
	if attempts == 0 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(l.Pause), attempts-1), ctx)

	op := func() error {
		data, err := l.read(ctx, source)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, v); err != nil {
			return backoff.Permanent(fmt.Errorf("could not decode JSON: %w", err))
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		l.log.Info("Failed to load feed, retrying", "source", source, "error", err.Error(), "next", next)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return types.ConfigurationFailure{Source: source, Err: err}
	}
	l.log.V(1).Info("Loaded feed", "source", source)
	return nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		data, err := os.ReadFile(source)
		if errors.Is(err, os.ErrNotExist) {
			return nil, backoff.Permanent(err)
		}
		return data, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
