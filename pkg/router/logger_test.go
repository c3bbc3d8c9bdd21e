package router

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/storefront-edge/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// captureLogs routes the global logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	buf := &bytes.Buffer{}
	logging.Setup(logging.Config{Level: logging.LevelDebug, Output: buf})
	return buf
}

func TestDefaultLoggers_TagComponent(t *testing.T) {
	buf := captureLogs(t)

	env := newTestEnv(t, nil)
	env.activate(t)

	refresher := NewRefresher(RefresherConfig{Workers: 1, QueueSize: 1, Timeout: time.Second})
	refresher.Enqueue("boom", func(context.Context) error { panic("boom") })
	waitIdle(t, refresher)
	refresher.Close(context.Background())

	output := buf.String()
	for _, component := range []string{logging.ComponentRouter, logging.ComponentRefresher, logging.ComponentPrecache} {
		if !strings.Contains(output, `"component":"`+component+`"`) {
			t.Errorf("no log line tagged component=%s in %q", component, output)
		}
	}
}
