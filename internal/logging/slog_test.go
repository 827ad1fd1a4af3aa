package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlogLogger_TextLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "text", "debug")
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", "msg=dbg", "a=1",
		"level=INFO", "msg=inf", "b=2",
		"level=WARN", "msg=wrn", "c=3",
		"level=ERROR", "msg=err", "d=4",
	} {
		require.Contains(t, out, want)
	}
}

func TestSlogLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "text", "warn")
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestSlogLogger_JSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", "info").With("module", "reconcile")
	log.Info(context.Background(), "settled", "account_id", "alice.nova-sdk.near")

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "{"))
	require.Contains(t, out, `"module":"reconcile"`)
	require.Contains(t, out, `"account_id":"alice.nova-sdk.near"`)
}

func TestNop_DiscardsAndChains(t *testing.T) {
	l := OrNop(nil)
	l.Info(context.Background(), "x")
	require.NotNil(t, l.With("k", "v"))
}
