package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"register https", "https://Reports.Ofsted.gov.uk/provider/44/80432", "reports.ofsted.gov.uk"},
		{"files host", "https://files.ofsted.gov.uk/v1/file/50252437", "files.ofsted.gov.uk"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "127.0.0.1:8080", "127.0.0.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestObserveFetch(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("fetch.test", OutcomeTransient))
	ObserveFetch("https://fetch.test/a", OutcomeTransient, 0)
	ObserveFetch("https://fetch.test/a", OutcomeOK, 128)

	assert.InDelta(t, before+1, testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("fetch.test", OutcomeTransient)), 0)
	assert.InDelta(t, 128, testutil.ToFloat64(fetchBytesTotal.WithLabelValues("fetch.test")), 0)
}

func TestObserveCrawlCounters(t *testing.T) {
	ObserveProvider(ProviderUnmatched)
	ObserveMissingField("inspection_start_date")
	ObserveDirectoryPage("ok")
	ObserveRun("completed")
	ObserveRateLimitDelay("delay.test", 20*time.Millisecond)

	assert.GreaterOrEqual(t, testutil.ToFloat64(providersTotal.WithLabelValues(ProviderUnmatched)), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(extractionFieldsMissingTotal.WithLabelValues("inspection_start_date")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(directoryPagesTotal.WithLabelValues("ok")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(crawlRunsTotal.WithLabelValues("completed")), 1.0)
	assert.Positive(t, testutil.CollectAndCount(crawlerRateLimitDelaysSeconds))
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"https://reports.ofsted.gov.uk", "https://files.ofsted.gov.uk", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
