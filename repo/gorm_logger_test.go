package repo_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skryldev/storefront/repo"
)

func newBufferedGormLogger(slow time.Duration) (*repo.GormLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return repo.NewGormLogger(l, slow), &buf
}

func trace(l logger.Interface, begin time.Time, err error) {
	l.Trace(context.Background(), begin, func() (string, int64) {
		return "SELECT * FROM products", 2
	}, err)
}

func TestGormLogger_Trace(t *testing.T) {
	cases := []struct {
		name  string
		begin time.Time
		err   error
		want  string
	}{
		{"ok", time.Now(), nil, "level=DEBUG"},
		{"slow", time.Now().Add(-time.Second), nil, "level=WARN"},
		{"failure", time.Now(), errors.New("disk I/O error"), "level=ERROR"},
		{"not found is not an error", time.Now(), gorm.ErrRecordNotFound, "level=DEBUG"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			l, buf := newBufferedGormLogger(100 * time.Millisecond)
			trace(l, c.begin, c.err)
			assert.Contains(t, buf.String(), c.want)
			assert.Contains(t, buf.String(), "SELECT * FROM products")
		})
	}
}

func TestGormLogger_Silent(t *testing.T) {
	l, buf := newBufferedGormLogger(0)
	trace(l.LogMode(logger.Silent), time.Now(), errors.New("boom"))
	assert.Empty(t, buf.String())
}

func TestGormLogger_LogModeDoesNotMutate(t *testing.T) {
	l, buf := newBufferedGormLogger(0)
	_ = l.LogMode(logger.Silent)
	l.Info(context.Background(), "opened %s", "products")
	assert.Contains(t, buf.String(), "opened products")
}
