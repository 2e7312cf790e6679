package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/vshn/downtime-switcher/pkg/types"

	_ "github.com/mattn/go-sqlite3"
)

type dbDowntimeWindow struct {
	ID             string `db:"id"`
	StartTime      int64  `db:"start_time"`
	EndTime        int64  `db:"end_time"`
	Title          string `db:"title"`
	Description    string `db:"description"`
	ExternalID     string `db:"external_id"`
	ExternalLink   string `db:"external_link"`
	Endpoint       string `db:"endpoint"`
	Type           string `db:"service_type"`
	Site           string `db:"site"`
	Severity       string `db:"severity"`
	Classification string `db:"classification"`
}

// DowntimeStore keeps the operator-declared downtime windows that are merged
// into the calendar feed on every cycle.
type DowntimeStore struct {
	db *sqlx.DB
}

func NewDowntimeStore(dbpath string) (*DowntimeStore, error) {
	db, err := sqlx.Open("sqlite3", dbpath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)
	return &DowntimeStore{db: db}, nil
}

func (s *DowntimeStore) InitializeDB() error {
	createSQL := `CREATE TABLE IF NOT EXISTS downtime (
	  "id" TEXT PRIMARY KEY,
	  "start_time" INTEGER NOT NULL,
	  "end_time" INTEGER,
	  "title" TEXT,
	  "description" TEXT,
	  "external_id" TEXT,
	  "external_link" TEXT,
	  "endpoint" TEXT NOT NULL,
	  "service_type" TEXT NOT NULL,
	  "site" TEXT,
	  "severity" TEXT,
	  "classification" TEXT
	)`

	statement, err := s.db.Prepare(createSQL)
	if err != nil {
		return fmt.Errorf("failed to initialize db: %w", err)
	}
	defer statement.Close()
	_, err = statement.Exec()
	if err != nil {
		return fmt.Errorf("failed to initialize db: %w", err)
	}
	return nil
}

func (s *DowntimeStore) CloseDB() error {
	return s.db.Close()
}

// StoreNewWindow inserts w. A window whose external ID is already known
// replaces the existing record instead.
func (s *DowntimeStore) StoreNewWindow(w *types.DowntimeWindow) (*types.DowntimeWindow, error) {
	q := `INSERT INTO downtime (id, start_time, end_time, title, description, external_id, external_link, endpoint, service_type, site, severity, classification)
	  VALUES (:id, :start_time, :end_time, :title, :description, :external_id, :external_link, :endpoint, :service_type, :site, :severity, :classification)`
	st := convertToDbStruct(w)

	err := s.validate(&st)
	if err != nil {
		return nil, fmt.Errorf("invalid downtime window: %w", err)
	}

	existingID, err := s.idFromExternalID(st.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("error while validating external ID: %w", err)
	}

	if len(existingID) > 0 && existingID != st.ID {
		st.ID = existingID
		return s.updateWindow(&st)
	}

	_, err = s.db.NamedExec(q, st)
	if err != nil {
		return nil, fmt.Errorf("unable to store downtime window: %w", err)
	}

	return convertFromDbStruct(&st), nil
}

// ListWindows returns the windows intersecting [from, to). Windows without an
// end time are always still running.
func (s *DowntimeStore) ListWindows(from time.Time, to time.Time) ([]*types.DowntimeWindow, error) {
	results := []dbDowntimeWindow{}

	err := s.db.Select(&results, "SELECT * FROM downtime WHERE (end_time > ? OR end_time <= 0) AND start_time < ? ORDER BY start_time, id", from.Unix(), to.Unix())
	if err != nil {
		return []*types.DowntimeWindow{}, fmt.Errorf("error while querying downtime windows: %w", err)
	}

	converted := make([]*types.DowntimeWindow, len(results))
	for i := range results {
		converted[i] = convertFromDbStruct(&results[i])
	}
	return converted, nil
}

// Records returns the windows that are still open at now and start before
// now+horizon, as calendar records. Open-ended windows end at now+horizon.
func (s *DowntimeStore) Records(now time.Time, horizon time.Duration) ([]types.DowntimeRecord, error) {
	until := now.Add(horizon)
	windows, err := s.ListWindows(now, until)
	if err != nil {
		return nil, err
	}
	records := make([]types.DowntimeRecord, 0, len(windows))
	for _, w := range windows {
		records = append(records, w.Record(until))
	}
	return records, nil
}

func (s *DowntimeStore) UpdateWindow(w *types.DowntimeWindow) (*types.DowntimeWindow, error) {
	st := convertToDbStruct(w)

	err := s.validate(&st)
	if err != nil {
		return nil, fmt.Errorf("invalid downtime window: %w", err)
	}

	existingID, err := s.idFromExternalID(st.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("error while validating external ID: %w", err)
	}

	if len(existingID) > 0 && existingID != st.ID {
		return nil, errors.New("could not update downtime window: external ID conflicts with existing record")
	}

	return s.updateWindow(&st)
}

func (s *DowntimeStore) PatchWindow(w *types.DowntimeWindow) (*types.DowntimeWindow, error) {
	existing, err := s.getWindowById(w.ID)
	if err != nil {
		return nil, fmt.Errorf("unable to find existing record for patch: %w", err)
	}
	st, err := updateDbStruct(existing, w)
	if err != nil {
		return nil, fmt.Errorf("unable to convert downtime window for patch: %w", err)
	}

	err = s.validate(&st)
	if err != nil {
		return nil, fmt.Errorf("invalid downtime window: %w", err)
	}

	existingID, err := s.idFromExternalID(st.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("error while validating external ID: %w", err)
	}

	if len(existingID) > 0 && existingID != st.ID {
		return nil, errors.New("could not patch downtime window: external ID conflicts with existing record")
	}

	return s.updateWindow(&st)
}

func (s *DowntimeStore) DeleteWindow(id string) error {
	res, err := s.db.Exec("DELETE FROM downtime WHERE id == ?", id)
	if err != nil {
		return fmt.Errorf("unable to delete downtime window: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to delete downtime window: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no downtime window with ID %q", id)
	}
	return nil
}

func (s *DowntimeStore) validate(w *dbDowntimeWindow) error {
	if w.StartTime <= 0 {
		return errors.New("validation error: start time must be set")
	}
	if w.EndTime > 0 && w.StartTime >= w.EndTime {
		return errors.New("validation error: end time must be after start time")
	}
	if len(w.Endpoint) == 0 {
		return errors.New("validation error: endpoint must be set")
	}
	if w.Type != types.ServiceCE && w.Type != types.ServiceSRM {
		return fmt.Errorf("validation error: type must be %s or %s", types.ServiceCE, types.ServiceSRM)
	}
	switch w.Severity {
	case "", types.SeverityOutage, types.SeverityWarning:
	default:
		return fmt.Errorf("validation error: unknown severity %q", w.Severity)
	}
	switch w.Classification {
	case "", types.ClassificationScheduled, types.ClassificationUnscheduled:
	default:
		return fmt.Errorf("validation error: unknown classification %q", w.Classification)
	}
	return nil
}

func (s *DowntimeStore) updateWindow(w *dbDowntimeWindow) (*types.DowntimeWindow, error) {
	q := `UPDATE downtime SET start_time = :start_time, end_time = :end_time, title = :title, description = :description,
	  external_id = :external_id, external_link = :external_link, endpoint = :endpoint, service_type = :service_type,
	  site = :site, severity = :severity, classification = :classification WHERE id == :id`
	_, err := s.db.NamedExec(q, w)
	if err != nil {
		return nil, fmt.Errorf("unable to update downtime window: %w", err)
	}

	return convertFromDbStruct(w), nil
}

func (s *DowntimeStore) getWindowById(id string) (dbDowntimeWindow, error) {
	result := dbDowntimeWindow{}
	err := s.db.Get(&result, "SELECT * FROM downtime WHERE id == ?", id)
	if err != nil {
		return dbDowntimeWindow{}, fmt.Errorf("error while querying record by ID: %w", err)
	}
	return result, nil
}

func (s *DowntimeStore) idFromExternalID(externalID string) (string, error) {
	if len(externalID) == 0 {
		return "", nil
	}

	results := []dbDowntimeWindow{}
	err := s.db.Select(&results, "SELECT * FROM downtime WHERE external_id == ? LIMIT 1", externalID)
	if err != nil {
		return "", fmt.Errorf("error while querying for external ID: %w", err)
	}

	if len(results) > 0 {
		return results[0].ID, nil
	}
	return "", nil
}

func convertToDbStruct(w *types.DowntimeWindow) dbDowntimeWindow {
	nw := dbDowntimeWindow{
		ID:             w.ID,
		Title:          w.Title,
		Description:    w.Description,
		ExternalID:     w.ExternalID,
		ExternalLink:   w.ExternalLink,
		Endpoint:       w.Endpoint,
		Type:           strings.ToUpper(w.Type),
		Site:           w.Site,
		Severity:       strings.ToUpper(w.Severity),
		Classification: strings.ToUpper(w.Classification),
	}

	if w.StartTime != nil {
		nw.StartTime = w.StartTime.Unix()
	}
	if w.EndTime != nil {
		nw.EndTime = w.EndTime.Unix()
	}

	if len(nw.ID) == 0 {
		nw.ID = uuid.New().String()
	}

	return nw
}

func convertFromDbStruct(w *dbDowntimeWindow) *types.DowntimeWindow {
	st, en := time.Unix(w.StartTime, 0).UTC(), time.Unix(w.EndTime, 0).UTC()
	nw := types.DowntimeWindow{
		ID:             w.ID,
		Title:          w.Title,
		Description:    w.Description,
		ExternalID:     w.ExternalID,
		ExternalLink:   w.ExternalLink,
		Endpoint:       w.Endpoint,
		Type:           w.Type,
		Site:           w.Site,
		Severity:       w.Severity,
		Classification: w.Classification,
	}

	if w.StartTime > 0 {
		nw.StartTime = &st
	}
	if w.EndTime > 0 {
		nw.EndTime = &en
	}

	return &nw
}

func updateDbStruct(e dbDowntimeWindow, w *types.DowntimeWindow) (dbDowntimeWindow, error) {
	if e.ID != w.ID {
		return dbDowntimeWindow{}, errors.New("cannot patch record: ID mismatch")
	}

	if w.StartTime != nil {
		e.StartTime = w.StartTime.Unix()
	}
	if w.EndTime != nil {
		e.EndTime = w.EndTime.Unix()
	}
	if len(w.Title) > 0 {
		e.Title = w.Title
	}
	if len(w.Description) > 0 {
		e.Description = w.Description
	}
	if len(w.ExternalID) > 0 {
		e.ExternalID = w.ExternalID
	}
	if len(w.ExternalLink) > 0 {
		e.ExternalLink = w.ExternalLink
	}
	if len(w.Endpoint) > 0 {
		e.Endpoint = w.Endpoint
	}
	if len(w.Type) > 0 {
		e.Type = strings.ToUpper(w.Type)
	}
	if len(w.Site) > 0 {
		e.Site = w.Site
	}
	if len(w.Severity) > 0 {
		e.Severity = strings.ToUpper(w.Severity)
	}
	if len(w.Classification) > 0 {
		e.Classification = strings.ToUpper(w.Classification)
	}
	return e, nil
}
