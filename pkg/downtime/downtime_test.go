package downtime

import (
	"bytes"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonglil/buflogr"

	"github.com/vshn/downtime-switcher/pkg/types"
)

var now = time.Unix(1_700_000_000, 0).UTC()

func at(s int64) time.Time {
	return now.Add(time.Duration(s) * time.Second)
}

func dt(endpoint string, start, end int64) *Downtime {
	return New(types.DowntimeRecord{
		Endpoint:  endpoint,
		StartTime: at(start),
		EndTime:   at(end),
		Type:      types.ServiceCE,
		Severity:  types.SeverityOutage,
		InfoURL:   "https://example.com/" + endpoint,
	})
}

func set(endpoint string, ds ...*Downtime) *EndpointSet {
	s := NewEndpointSet(endpoint)
	for _, d := range ds {
		s.Add(d)
	}
	return s
}

func assertInterval(t *testing.T, g *OverlapGroup, start, end int64) {
	t.Helper()
	iv, ok := g.Interval()
	require.True(t, ok)
	assert.True(t, at(start).Equal(iv.Start), "start: %s", iv)
	assert.True(t, at(end).Equal(iv.End), "end: %s", iv)
}

func TestDowntimeExtend(t *testing.T) {
	d := dt("ce1", 1000, 2000)
	e := d.Extend(300 * time.Second)

	assert.True(t, at(700).Equal(e.Interval.Start))
	assert.True(t, at(2000).Equal(e.Interval.End))
	assert.True(t, at(1000).Equal(e.Interval.OriginalStart))
	assert.Equal(t, d.InfoURL, e.InfoURL)
	assert.True(t, at(1000).Equal(d.Interval.Start), "original must not change")
}

func TestEndpointSetExtend(t *testing.T) {
	s := set("ce1", dt("ce1", 1000, 2000), dt("ce1", 5000, 6000))
	e := s.Extend(time.Hour)

	require.Equal(t, 2, e.Len())
	assert.Equal(t, "ce1", e.Endpoint())
	assert.True(t, at(1000-3600).Equal(e.Downtimes()[0].Interval.Start))
	assert.True(t, at(5000-3600).Equal(e.Downtimes()[1].Interval.Start))
	assert.True(t, at(1000).Equal(s.Downtimes()[0].Interval.Start))
}

func TestOverlapGroupAdd(t *testing.T) {
	g := &OverlapGroup{}
	_, ok := g.Interval()
	assert.False(t, ok)

	assert.True(t, g.Add(dt("a", 1000, 3000)))
	assertInterval(t, g, 1000, 3000)

	assert.True(t, g.Add(dt("b", 2000, 4000)))
	assertInterval(t, g, 2000, 3000)

	// does not intersect [2000, 3000)
	assert.False(t, g.Add(dt("c", 3000, 5000)))
	assert.Equal(t, 2, g.Len())
	assertInterval(t, g, 2000, 3000)

	// a wider window is accepted but never widens the group
	assert.True(t, g.Add(dt("d", 0, 10000)))
	assertInterval(t, g, 2000, 3000)
}

func TestOverlapGroupOrderDependence(t *testing.T) {
	a := dt("a", 0, 1000)
	b := dt("b", 500, 2000)
	c := dt("c", 1500, 2500)

	g1 := NewOverlapGroup(a, b, c)
	assert.Equal(t, 2, g1.Len())
	assertInterval(t, g1, 500, 1000)

	g2 := NewOverlapGroup(b, c, a)
	assert.Equal(t, 2, g2.Len())
	assertInterval(t, g2, 1500, 2000)
}

func TestInfoURLsDistinct(t *testing.T) {
	a := dt("a", 0, 1000)
	b := dt("b", 0, 1000)
	b.InfoURL = a.InfoURL
	c := dt("c", 0, 1000)

	g := NewOverlapGroup(a, b, c)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/c"}, g.InfoURLs())
}

func TestOverlapGroupListOverlap(t *testing.T) {
	base := OverlapGroupList{NewOverlapGroup(dt("a", 0, 10000))}
	s := set("b", dt("b", 1000, 2000), dt("b", 5000, 6000), dt("b", 20000, 30000))

	out := base.Overlap(s)
	require.Len(t, out, 2)
	assertInterval(t, out[0], 1000, 2000)
	assertInterval(t, out[1], 5000, 6000)

	// copy on write
	assert.Equal(t, 1, base[0].Len())
	assertInterval(t, base[0], 0, 10000)
}

func TestConcat(t *testing.T) {
	l1 := OverlapGroupList{NewOverlapGroup(dt("a", 0, 1))}
	l2 := OverlapGroupList{NewOverlapGroup(dt("b", 0, 1)), NewOverlapGroup(dt("a", 0, 1))}

	out := l1.Concat(l2)
	assert.Len(t, out, 3)
	assert.Same(t, l1[0], out[0])
	assert.Same(t, l2[1], out[2])
}

func TestReduce(t *testing.T) {
	t.Run("no endpoints", func(t *testing.T) {
		assert.Empty(t, Reduce(nil))
	})

	t.Run("single endpoint", func(t *testing.T) {
		out := Reduce([]*EndpointSet{set("a", dt("a", 0, 1000), dt("a", 5000, 6000))})
		require.Len(t, out, 2)
		assert.Equal(t, 1, out[0].Len())
		assertInterval(t, out[1], 5000, 6000)
	})

	t.Run("two endpoints", func(t *testing.T) {
		out := Reduce([]*EndpointSet{
			set("a", dt("a", 0, 1000), dt("a", 5000, 6000)),
			set("b", dt("b", 500, 5500)),
		})
		require.Len(t, out, 2)
		assertInterval(t, out[0], 500, 1000)
		assertInterval(t, out[1], 5000, 5500)
		assert.Equal(t, 2, out[0].Len())
	})

	t.Run("endpoint without downtimes", func(t *testing.T) {
		out := Reduce([]*EndpointSet{
			set("a", dt("a", 0, 1000)),
			set("b"),
		})
		assert.Empty(t, out)
	})

	t.Run("three endpoints", func(t *testing.T) {
		out := Reduce([]*EndpointSet{
			set("a", dt("a", 0, 10000)),
			set("b", dt("b", 1000, 4000), dt("b", 6000, 9000)),
			set("c", dt("c", 3000, 7000)),
		})
		require.Len(t, out, 2)
		assertInterval(t, out[0], 3000, 4000)
		assertInterval(t, out[1], 6000, 7000)
		assert.Equal(t, 3, out[1].Len())
	})
}

func TestIngest(t *testing.T) {
	var buf bytes.Buffer
	log := buflogr.NewWithBuffer(&buf)

	rec := func(endpoint string, start, end int64) types.DowntimeRecord {
		return types.DowntimeRecord{
			Endpoint:  endpoint,
			StartTime: at(start),
			EndTime:   at(end),
			Type:      types.ServiceCE,
			Severity:  types.SeverityOutage,
		}
	}

	warning := rec("warn", 100, 200)
	warning.Severity = types.SeverityWarning
	srm := rec("srm", 100, 200)
	srm.Type = types.ServiceSRM
	unknown := rec("xrootd", 100, 200)
	unknown.Type = "XROOTD"

	out := Ingest(log, []types.DowntimeRecord{
		rec("ok", 100, 200),
		warning,
		rec("over", -200, -100),
		rec("ok", 100, 200),
		srm,
		rec("", 100, 200),
		rec("inverted", 300, 200),
		unknown,
		rec("ending-now", -100, 0),
	}, now)

	endpoints := []string{}
	for _, d := range out {
		endpoints = append(endpoints, d.Endpoint)
	}
	assert.Equal(t, []string{"ok", "srm", "ending-now"}, endpoints)
	assert.Contains(t, buf.String(), "Invalid downtime record")
}

func TestIngestDiscard(t *testing.T) {
	out := Ingest(logr.Discard(), nil, now)
	assert.Empty(t, out)
}
