// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordEnqueue(t *testing.T) {
	created := testutil.ToFloat64(JobsEnqueued.WithLabelValues("index_branch", "created"))
	dedup := testutil.ToFloat64(JobsEnqueued.WithLabelValues("index_branch", "deduplicated"))

	RecordEnqueue("index_branch", true)
	RecordEnqueue("index_branch", false)
	RecordEnqueue("index_branch", false)

	if got := testutil.ToFloat64(JobsEnqueued.WithLabelValues("index_branch", "created")) - created; got != 1 {
		t.Errorf("created delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(JobsEnqueued.WithLabelValues("index_branch", "deduplicated")) - dedup; got != 2 {
		t.Errorf("deduplicated delta = %v, want 2", got)
	}
}

func TestRecordIndexRun(t *testing.T) {
	indexed := testutil.ToFloat64(IndexFiles.WithLabelValues("indexed"))
	failed := testutil.ToFloat64(IndexRuns.WithLabelValues("failed"))

	RecordIndexRun(time.Second, 2, 1, nil)
	RecordIndexRun(time.Second, 0, 0, errors.New("truncated"))

	if got := testutil.ToFloat64(IndexFiles.WithLabelValues("indexed")) - indexed; got != 2 {
		t.Errorf("indexed files delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(IndexRuns.WithLabelValues("failed")) - failed; got != 1 {
		t.Errorf("failed runs delta = %v, want 1", got)
	}
}

func TestUpdateQueueDepth(t *testing.T) {
	UpdateQueueDepth(map[string]int64{"queued": 4, "running": 1})

	if got := testutil.ToFloat64(JobQueueDepth.WithLabelValues("queued")); got != 4 {
		t.Errorf("queued depth = %v, want 4", got)
	}
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"},
		{304, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{0, "error"},
	}
	for _, tt := range tests {
		if got := statusClass(tt.status); got != tt.want {
			t.Errorf("statusClass(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestRecordUpstreamRequest_Histogram(t *testing.T) {
	RecordUpstreamRequest("github", "get_tree", 200, 150*time.Millisecond)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}

	var found *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "gip_upstream_request_duration_seconds" {
			found = mf
		}
	}
	if found == nil {
		t.Fatal("upstream duration histogram not gathered")
	}
	if found.GetType() != dto.MetricType_HISTOGRAM {
		t.Errorf("type = %v, want histogram", found.GetType())
	}
	var samples uint64
	for _, m := range found.GetMetric() {
		samples += m.GetHistogram().GetSampleCount()
	}
	if samples == 0 {
		t.Error("no samples recorded")
	}
}

func TestMetricLint(t *testing.T) {
	RecordAPIRequest("GET", "/api/v1/health/live", "200", time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Fatalf("GatherAndLint() error = %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s: %s", p.Metric, p.Text)
	}
}
