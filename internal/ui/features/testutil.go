// Package features provides shared test utilities for UI feature tests.
package features

import (
	"context"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/fraudviz/internal/explorer"
	"github.com/leapstack-labs/fraudviz/internal/loader"
	"github.com/leapstack-labs/fraudviz/internal/metrics"
	"github.com/leapstack-labs/fraudviz/internal/notifier"
	"github.com/leapstack-labs/fraudviz/internal/testutil"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	Source       *testutil.FakeSource
	Loader       *loader.Loader
	Manager      *explorer.Manager
	Notifier     *notifier.Notifier
	Metrics      *metrics.Collector
	SessionStore *sessions.CookieStore
}

// SetupTestFixture wires a loader over a fake source. When load is true
// the sample snapshot is committed before returning.
func SetupTestFixture(t *testing.T, load bool) *TestFixture {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	src := testutil.NewFakeSource()
	m := metrics.New()
	n := notifier.New()
	l := loader.New(loader.Config{Source: src, Notifier: n, Metrics: m, Logger: logger})
	if load {
		_, err := l.Load(context.Background())
		require.NoError(t, err)
	}

	mgr := explorer.NewManager(l, core.ViewTransactions, m, logger)
	t.Cleanup(mgr.Wait)

	return &TestFixture{
		Source:       src,
		Loader:       l,
		Manager:      mgr,
		Notifier:     n,
		Metrics:      m,
		SessionStore: sessions.NewCookieStore([]byte("test-secret-test-secret-test-sec")),
	}
}
