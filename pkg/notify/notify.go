package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"github.com/go-logr/logr"

	"github.com/vshn/downtime-switcher/pkg/downtime"
	"github.com/vshn/downtime-switcher/pkg/topology"
)

type Config struct {
	Sender string
	// Recipients maps a cloud to a comma separated list of addresses.
	Recipients map[string]string
	// Extra is copied on every notification.
	Extra []string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// SMTP sends mail through a relay without authentication.
type SMTP struct {
	Addr string
}

func (s SMTP) Send(_ context.Context, from string, to []string, msg []byte) error {
	return smtp.SendMail(s.Addr, nil, from, to, msg)
}

// Log only logs the messages it would send.
type Log struct {
	Logger logr.Logger
}

func (l Log) Send(_ context.Context, from string, to []string, msg []byte) error {
	l.Logger.Info("Not sending notification", "from", from, "to", to, "message", string(msg))
	return nil
}

type Notifier struct {
	config Config
	sender Sender
	log    logr.Logger
	now    func() time.Time
}

func New(log logr.Logger, config Config, sender Sender) *Notifier {
	return &Notifier{
		config: config,
		sender: sender,
		log:    log,
		now:    time.Now,
	}
}

// Notify sends one message per cloud with changes. probeActive false adds a
// warning that upstream currently ignores the changes.
func (n *Notifier) Notify(ctx context.Context, clouds []topology.CloudEvents, probeActive bool) error {
	var errs []error
	for _, c := range clouds {
		if len(c.Changed()) == 0 {
			continue
		}
		log := n.log.WithValues("cloud", c.Cloud)
		to := splitAddresses(n.config.Recipients[c.Cloud])
		if len(to) == 0 {
			log.Info("No recipients configured for cloud, not notifying")
			continue
		}
		msg, err := n.Message(c, to, probeActive)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rcpt := append(to, n.config.Extra...)
		if err := n.sender.Send(ctx, n.config.Sender, rcpt, msg); err != nil {
			log.Error(err, "Failed to send notification")
			errs = append(errs, fmt.Errorf("notifying cloud %s: %w", c.Cloud, err))
			continue
		}
		log.Info("Sent notification", "recipients", rcpt, "events", len(c.Changed()))
	}
	return errors.Join(errs...)
}

// Message renders the full mail including headers.
func (n *Notifier) Message(c topology.CloudEvents, to []string, probeActive bool) ([]byte, error) {
	body, err := Body(c, probeActive)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", n.config.Sender)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	if len(n.config.Extra) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(n.config.Extra, ", "))
	}
	fmt.Fprintf(&b, "Subject: [Switcher AutoExclusion] Summary for %s at %s\r\n", c.Cloud, n.now().UTC().Format("2006-01-02 15:04 MST"))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(body)
	return b.Bytes(), nil
}

func splitAddresses(s string) []string {
	out := []string{}
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

var bodyTemplate = template.Must(template.New("body").Funcs(template.FuncMap{
	"downtimes": func(e *topology.Event) []*downtime.Downtime {
		if e.Group != nil {
			return e.Group.Members()
		}
		if e.Downtime != nil {
			return []*downtime.Downtime{e.Downtime}
		}
		return nil
	},
	"utc": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04:05")
	},
	"isQueue": func(e *topology.Event) bool {
		return e.EntityType == topology.EntityQueue
	},
}).Parse(`{{- if not .ProbeActive -}}
WARNING:
The Switcher probe is currently DISABLED.
All status changes made for PanDA queues are ignored upstream until the probe is set ACTIVE again.


{{ end -}}
Dear {{ .Cloud.Cloud }} Cloud Support,
    Please note that the following PanDA queues and/or CE endpoints have been excluded/recovered.
    Note that, for the PanDA queues, manual status settings may override the status set here.

{{ range .Cloud.Sites }}{{ $site := .Site }}{{ range .Queues }}
    Site {{ $site }}:
        PanDA Resource {{ .Queue }}:
{{- range .Events }}
{{- if isQueue . }}
            PanDA Resource: {{ .UID }}
{{- else }}
            CE name: {{ .UID }}
{{- end }}
            status changed from {{ .OldStatus }} to {{ .NewStatus }}
{{- if .Overridden }}
            WARNING: the status is currently {{ .FinalStatus }}, probably set manually
{{- end }}
            Reason:
{{- with downtimes . }}{{ range . }}
                Scheduled downtime:
                    start time: {{ utc .Interval.OriginalStart }} UTC
                    end time: {{ utc .Interval.End }} UTC
                    endpoint: {{ .Endpoint }}
                    description: {{ .Description }}
                    info_url: {{ .InfoURL }}
{{- end }}{{ else }}
                downtimes are over
{{- end }}
{{ end }}{{ end }}{{ end }}
PanDA queues are set brokeroff or offline before a downtime, and set online after a downtime ends.
`))

// Body renders the notification text of one cloud.
func Body(c topology.CloudEvents, probeActive bool) (string, error) {
	var b strings.Builder
	err := bodyTemplate.Execute(&b, struct {
		Cloud       topology.CloudEvents
		ProbeActive bool
	}{c, probeActive})
	if err != nil {
		return "", fmt.Errorf("could not render notification: %w", err)
	}
	return b.String(), nil
}
