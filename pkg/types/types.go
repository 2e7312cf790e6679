package types

import "time"

const (
	ServiceCE  = "CE"
	ServiceSRM = "SRM"

	SeverityOutage  = "OUTAGE"
	SeverityWarning = "WARNING"

	ClassificationScheduled   = "SCHEDULED"
	ClassificationUnscheduled = "UNSCHEDULED"
)

// DowntimeRecord is a single calendar entry for one endpoint, as delivered
// by the downtime calendar feed or the local calendar store.
type DowntimeRecord struct {
	Endpoint       string    `json:"endpoint"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Description    string    `json:"description,omitempty"`
	Classification string    `json:"classification"`
	Type           string    `json:"type"`
	Site           string    `json:"site"`
	Name           string    `json:"name"`
	InfoURL        string    `json:"info_url,omitempty"`
	Severity       string    `json:"severity"`
}

// DowntimeWindow is an operator-declared downtime kept in the local calendar.
type DowntimeWindow struct {
	ID             string     `json:"id"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	ExternalID     string     `json:"external_id,omitempty"`
	ExternalLink   string     `json:"external_link,omitempty"`
	Endpoint       string     `json:"endpoint"`
	Type           string     `json:"type"`
	Site           string     `json:"site,omitempty"`
	Severity       string     `json:"severity,omitempty"`
	Classification string     `json:"classification,omitempty"`
}

// Record turns a window into a calendar record. Windows without an end time
// are open-ended and reported as ending at openEnd.
func (w *DowntimeWindow) Record(openEnd time.Time) DowntimeRecord {
	r := DowntimeRecord{
		Endpoint:       w.Endpoint,
		EndTime:        openEnd,
		Description:    w.Description,
		Classification: w.Classification,
		Type:           w.Type,
		Site:           w.Site,
		Name:           w.Title,
		InfoURL:        w.ExternalLink,
		Severity:       w.Severity,
	}
	if w.StartTime != nil {
		r.StartTime = *w.StartTime
	}
	if w.EndTime != nil {
		r.EndTime = *w.EndTime
	}
	if r.Severity == "" {
		r.Severity = SeverityOutage
	}
	if r.Classification == "" {
		r.Classification = ClassificationScheduled
	}
	if r.Description == "" {
		r.Description = w.Title
	}
	return r
}
