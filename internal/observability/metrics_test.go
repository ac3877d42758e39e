package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveMutation("title", "committed", time.Millisecond)
	m.IncRollback("title", "validation")
	m.IncMediaIngest("cover_img", "stored")
	m.AddMediaDeleted(1, 1)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil WritePrometheus: %v", err)
	}
}

func TestWritePrometheusRendersSeries(t *testing.T) {
	m := NewMetrics()
	m.ObserveMutation("description", "rolled_back", 20*time.Millisecond)
	m.IncRollback("description", "remote_unavailable")
	m.IncMediaIngest("content_img", "deduplicated")
	m.AddMediaDeleted(3, 1)
	m.SessionOpened()

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`ds_mutations_total{kind="description",outcome="rolled_back"} 1`,
		`ds_mutation_rollbacks_total{kind="description",code="remote_unavailable"} 1`,
		`ds_media_ingest_total{intent="content_img",outcome="deduplicated"} 1`,
		`ds_media_deleted_total 3`,
		`ds_media_leaked_objects_total 1`,
		`ds_editing_sessions 1`,
		`ds_mutation_commit_duration_seconds_bucket{kind="description",le="0.025"} 1`,
		`ds_mutation_commit_duration_seconds_count{kind="description"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing series %q in:\n%s", want, out)
		}
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"op"}, []string{`a"b`})
	if got != `{op="a\"b"}` {
		t.Fatalf("labelString: got=%s", got)
	}
	if got := labelString([]string{"op", "status"}, []string{"x"}); got != `{op="x",status="unknown"}` {
		t.Fatalf("missing label value: got=%s", got)
	}
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders("api-key=abc, bad, x=")
	if len(h) != 1 || h["api-key"] != "abc" {
		t.Fatalf("ParseHeaders: got=%v", h)
	}
	if ParseHeaders("") != nil {
		t.Fatalf("empty headers should be nil")
	}
}
