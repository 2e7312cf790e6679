package actuator

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"github.com/vshn/downtime-switcher/pkg/topology"
)

// Config configures the HTTP actuator. The URL templates may contain the
// placeholders {uid}, {status} and {reason}.
type Config struct {
	QueueURL string
	CEURL    string

	// CertFile may hold both certificate and key, as grid proxies do.
	CertFile string
	KeyFile  string
	CAFile   string

	// Timeout bounds a single call. Zero means no timeout.
	Timeout time.Duration
	// Rate limits calls per second. Zero means unlimited.
	Rate float64
}

// HTTP changes entity statuses by calling the configured URL per entity.
type HTTP struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	log     logr.Logger
}

func NewHTTP(log logr.Logger, config Config) (*HTTP, error) {
	if config.QueueURL == "" || config.CEURL == "" {
		return nil, errors.New("both queue and CE URL templates are required")
	}
	tlsConfig, err := config.tls()
	if err != nil {
		return nil, err
	}
	limit := rate.Inf
	if config.Rate > 0 {
		limit = rate.Limit(config.Rate)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return &HTTP{
		config:  config,
		client:  &http.Client{Transport: transport},
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}, nil
}

func (c Config) tls() (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.CertFile != "" {
		key := c.KeyFile
		if key == "" {
			key = c.CertFile
		}
		cert, err := tls.LoadX509KeyPair(c.CertFile, key)
		if err != nil {
			return nil, fmt.Errorf("could not load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	if c.CAFile != "" {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("could not read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", c.CAFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// Render fills the template for the given entity. The comment is inserted
// as is since it is already URL safe.
func Render(template, uid, status, comment string) string {
	return strings.NewReplacer(
		"{uid}", url.QueryEscape(uid),
		"{status}", strings.ToUpper(status),
		"{reason}", comment,
	).Replace(template)
}

func (h *HTTP) ChangeStatus(ctx context.Context, entity topology.EntityType, uid, status, comment string) error {
	var tmpl string
	switch entity {
	case topology.EntityQueue:
		tmpl = h.config.QueueURL
	case topology.EntityCE:
		tmpl = h.config.CEURL
	default:
		return fmt.Errorf("unsupported entity type %q", entity)
	}

	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	target := Render(tmpl, uid, status, comment)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("invalid actuation URL: %w", err)
	}
	h.log.V(1).Info("Calling actuation URL", "url", target)
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// DryRun only logs the status changes it is asked to make.
type DryRun struct {
	log logr.Logger
}

func NewDryRun(log logr.Logger) DryRun {
	return DryRun{log: log}
}

func (d DryRun) ChangeStatus(_ context.Context, entity topology.EntityType, uid, status, comment string) error {
	d.log.Info("Dry run, not changing status", "entity", entity, "uid", uid, "status", status, "comment", comment)
	return nil
}
