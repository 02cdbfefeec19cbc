package utils

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_DefaultArgs(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, slog.LevelInfo)

	ctx := WithDefaultArgs(WithObjectType(context.Background(), "app.Person"), "kind", "find")
	log.InfoCtx(ctx, "query cached", "stored", true)
	out := buf.String()
	assert.Contains(t, out, `msg="[zerog] query cached"`)
	assert.Contains(t, out, "stored=true object_type=app.Person kind=find")

	// the parent context is not extended
	buf.Reset()
	log.InfoCtx(WithObjectType(context.Background(), "app.Order"), "dropped")
	assert.Contains(t, buf.String(), "object_type=app.Order")
	assert.NotContains(t, buf.String(), "kind=")
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, slog.LevelWarn)
	log.Debug("hidden")
	log.InfoCtx(context.Background(), "hidden")
	assert.Empty(t, buf.String())
	log.Warn("shown", "n", 1)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "n=1")
}
