package feed

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonglil/buflogr"

	"github.com/vshn/downtime-switcher/pkg/policy"
	"github.com/vshn/downtime-switcher/pkg/topology"
	"github.com/vshn/downtime-switcher/pkg/types"
)

func testLoader() *Loader {
	l := NewLoader(logr.Discard(), nil)
	l.Pause = time.Millisecond
	return l
}

func TestLoadHTTPRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"switcher": {"state": "ACTIVE"}}`))
	}))
	defer srv.Close()

	ps := ProbeState{}
	require.NoError(t, testLoader().Load(t.Context(), srv.URL, &ps))
	assert.EqualValues(t, 3, calls.Load())
	assert.True(t, ps.Active())
}

func TestLoadHTTPGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testLoader().Load(t.Context(), srv.URL, &ProbeState{})
	var cf types.ConfigurationFailure
	require.True(t, errors.As(err, &cf))
	assert.Equal(t, srv.URL, cf.Source)
	assert.EqualValues(t, DefaultAttempts, calls.Load())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "sites.json")
	require.NoError(t, os.WriteFile(good, []byte(`[{"name": "CERN-PROD", "datapolicies": ["Tier1", "Nucleus"]}]`), 0o600))
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o600))

	sites := []SiteInfo{}
	require.NoError(t, testLoader().Load(t.Context(), good, &sites))
	require.Len(t, sites, 1)
	assert.True(t, sites[0].Nucleus())

	assert.Error(t, testLoader().Load(t.Context(), bad, &sites))
	assert.Error(t, testLoader().Load(t.Context(), filepath.Join(dir, "missing.json"), &sites))
}

func TestAllowed(t *testing.T) {
	tests := map[string]struct {
		allowed Allowed
		name    string
		want    bool
	}{
		"empty allows all":      {Allowed{}, "DE", true},
		"allow list":            {Allowed{Allow: []string{"DE"}}, "DE", true},
		"not in allow list":     {Allowed{Allow: []string{"DE"}}, "FR", false},
		"excluded":              {Allowed{Exclude: []string{"FR"}}, "FR", false},
		"exclusion wins":        {Allowed{Allow: []string{"FR"}, Exclude: []string{"FR"}}, "FR", false},
		"not excluded, allowed": {Allowed{Exclude: []string{"FR"}}, "DE", true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.allowed.Contains(tc.name))
		})
	}
}

func TestDDMEndpoint(t *testing.T) {
	d := DDMTopology{
		"LAN": {ARProtocols: map[string][]Protocol{
			"write_lan": {{Endpoint: "srm://lan"}},
			"write_wan": {{Endpoint: "srm://wan"}},
		}},
		"WAN":  {ARProtocols: map[string][]Protocol{"write_wan": {{Endpoint: "srm://wan"}}}},
		"NONE": {ARProtocols: map[string][]Protocol{"read_lan": {{Endpoint: "srm://read"}}}},
	}

	ep, ok := d.Endpoint("LAN")
	assert.True(t, ok)
	assert.Equal(t, "srm://lan", ep)
	ep, ok = d.Endpoint("WAN")
	assert.True(t, ok)
	assert.Equal(t, "srm://wan", ep)
	_, ok = d.Endpoint("NONE")
	assert.False(t, ok)
	_, ok = d.Endpoint("MISSING")
	assert.False(t, ok)
}

func TestCalendarRecords(t *testing.T) {
	c := Calendar{
		"CERN-PROD": {
			{
				AffectedServices: "SRM, XRootD",
				Classification:   "SCHEDULED",
				Description:      "DB upgrade",
				StartTime:        "2019-07-23T09:00:00",
				EndTime:          "2019-07-23 18:00:00",
				InfoURL:          "https://goc.egi.eu/portal/index.php?Page_Type=Downtime&id=27387",
				Severity:         "OUTAGE",
				Services: []CalendarService{
					{Endpoint: "srm://srm-atlas.cern.ch", Name: "CERN-PROD-SRM", Type: "SRM"},
					{Endpoint: "root://castoratlas.cern.ch", Name: "CERN-PROD-XROOTD", Type: "XROOTD"},
				},
			},
			{
				AffectedServices: "XRootD",
				StartTime:        "2019-07-23T09:00:00",
				EndTime:          "2019-07-23T18:00:00",
				Services:         []CalendarService{{Endpoint: "srm://other", Type: "SRM"}},
			},
			{
				AffectedServices: "CE",
				StartTime:        "yesterday",
				EndTime:          "2019-07-23T18:00:00",
				Services:         []CalendarService{{Endpoint: "ce://broken", Type: "CE"}},
			},
		},
		"BNL": {
			{
				AffectedServices: "CE",
				Classification:   "UNSCHEDULED",
				StartTime:        "2019-07-24T09:00:00",
				EndTime:          "2019-07-24T10:00:00",
				Severity:         "WARNING",
				Services:         []CalendarService{{Endpoint: "gridgk01.racf.bnl.gov", Name: "BNL-CE", Type: "CE"}},
			},
		},
	}
	var buf bytes.Buffer

	recs := c.Records(buflogr.NewWithBuffer(&buf))

	require.Len(t, recs, 2)
	assert.Equal(t, "gridgk01.racf.bnl.gov", recs[0].Endpoint, "sites in lexical order")
	assert.Equal(t, "BNL", recs[0].Site)
	assert.Equal(t, types.SeverityWarning, recs[0].Severity, "severity is filtered at ingest")

	srm := recs[1]
	assert.Equal(t, "srm://srm-atlas.cern.ch", srm.Endpoint)
	assert.Equal(t, types.ServiceSRM, srm.Type)
	assert.Equal(t, "CERN-PROD-SRM", srm.Name)
	assert.Equal(t, time.Date(2019, 7, 23, 9, 0, 0, 0, time.UTC), srm.StartTime)
	assert.Equal(t, time.Date(2019, 7, 23, 18, 0, 0, 0, time.UTC), srm.EndTime)
	assert.Contains(t, buf.String(), "Invalid calendar entry")
}

func TestProbeStatusValue(t *testing.T) {
	ps := ProbeStatus{}
	ps.A.Mode = map[string]map[string]ProbeValue{
		"AUTO":   {"hammercloud": {Value: "OFFLINE"}},
		"MANUAL": {"switcher": {Value: "BROKEROFF"}},
	}
	v, ok := ps.Value()
	assert.True(t, ok)
	assert.Equal(t, "BROKEROFF", v)

	_, ok = ProbeStatus{}.Value()
	assert.False(t, ok)
}

func testPolicy(t *testing.T) *policy.Policy {
	t.Helper()
	p, err := policy.Parse([]byte(`
computeDisableLeadTime: 3h
tooShortThreshold: 1h
shortThreshold: 5h
leadTimes:
  compute:
    offline:
      production: {short: 2h, long: 2h}
`))
	require.NoError(t, err)
	return p
}

func TestBuild(t *testing.T) {
	s := &Snapshot{
		Schedconfig: Schedconfig{
			"Q2": {
				Cloud: "DE", Site: "S1", Type: "production", Status: "online", VO: "atlas",
				Storages: StorageTokens{WriteLAN: []string{"S1_DATADISK"}},
				Queues: []CEInfo{
					{Name: "CE1", Endpoint: "ce1:9619", State: "ACTIVE"},
					{Name: "CE2", Endpoint: "ce2:9619", State: "ACTIVE"},
				},
			},
			"Q1": {
				Cloud: "DE", Site: "S1", Type: "analysis", Status: "brokeroff", VO: "atlas",
				Queues: []CEInfo{{Name: "CE1", Endpoint: "ce1:9619", State: "ACTIVE"}},
			},
			"CMS": {Cloud: "DE", Site: "S1", VO: "cms"},
			"FRQ": {Cloud: "FR", Site: "S2", VO: "atlas"},
			"X":   {Cloud: "DE", Site: "S3", VO: "atlas"},
		},
		DDMTopology: DDMTopology{
			"S1_DATADISK": {ARProtocols: map[string][]Protocol{"write_wan": {{Endpoint: "srm://s1"}}}},
		},
		SwitcherStatus: SwitcherStatus{
			"Q1":    probe("AUTO", "BROKEROFF"),
			"Q2":    probe("AUTO", "TEST"),
			"OTHER": probe("AUTO", "ONLINE"),
		},
		Sites: []SiteInfo{{Name: "S1", DataPolicies: []string{"Nucleus"}}, {Name: "S9", DataPolicies: []string{"Nucleus"}}},
	}

	top := s.Build(logr.Discard(), testPolicy(t), Filter{
		Clouds: Allowed{Exclude: []string{"FR"}},
		Queues: Allowed{Exclude: []string{"X"}},
	})

	names := []string{}
	for _, q := range top.Queues() {
		names = append(names, q.Name)
	}
	assert.Equal(t, []string{"Q1", "Q2"}, names)

	q1, _ := top.Queue("Q1")
	assert.Equal(t, topology.StatusBrokeroff, q1.SwitcherStatus)
	assert.Equal(t, "brokeroff", q1.Status)
	assert.Equal(t, []string{"ce1:9619"}, q1.ComputeIDs)
	assert.Empty(t, q1.StorageIDs)

	q2, _ := top.Queue("Q2")
	assert.Equal(t, topology.StatusUnrecognized, q2.SwitcherStatus)
	assert.Equal(t, []string{"ce1:9619", "ce2:9619"}, q2.ComputeIDs)
	assert.Equal(t, []string{"srm://s1"}, q2.StorageIDs)

	ce, ok := top.Endpoint("ce1:9619")
	require.True(t, ok)
	assert.Equal(t, "CE1", ce.Name)
	assert.Equal(t, policy.Compute, ce.Kind)
	se, _ := top.Endpoint("srm://s1")
	assert.Equal(t, "S1_DATADISK", se.Token)

	site, _ := top.Site("S1")
	assert.True(t, site.Nucleus)
	require.Len(t, top.Clouds(), 1)
	assert.Equal(t, "DE", top.Clouds()[0].Name)
}

func probe(mode, value string) ProbeStatus {
	ps := ProbeStatus{}
	ps.A.Mode = map[string]map[string]ProbeValue{mode: {"switcher": {Value: value}}}
	return ps
}
