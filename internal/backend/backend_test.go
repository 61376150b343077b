package backend

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmanager/internal/amqp"
	"pmanager/internal/config"
	"pmanager/internal/core"
	applog "pmanager/internal/log"
)

func quietFactory(buf *bytes.Buffer) *Factory {
	return NewFactory(applog.New(applog.Config{Format: "text", Output: buf}))
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "memory", AMQPExchange: "x"})
	require.NoError(t, err)
	assert.Equal(t, MemoryBackend, cfg.Type)
	assert.Equal(t, "x", cfg.AMQPExchange)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.ErrorContains(t, err, "invalid backend type")

	_, err = FromAppConfig(&config.Config{DataBackend: "sqlite"})
	assert.ErrorContains(t, err, "path is required")
}

func TestCreateBackend_Memory(t *testing.T) {
	var buf bytes.Buffer
	res, err := quietFactory(&buf).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	assert.Nil(t, res.AMQP)
	assert.Nil(t, res.Publisher)

	task, err := res.Store.CreateTask(context.Background(), core.Task{Title: "write", Category: "work"})
	require.NoError(t, err)
	assert.NotZero(t, task.ID)
	assert.NoError(t, res.Cleanup())
}

func TestCreateBackend_SQLite(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "nested", "pmanager.db")
	res, err := quietFactory(&buf).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { res.Cleanup() })

	require.NoError(t, res.Store.Ping(context.Background()))
	memo, err := res.Store.CreateMemo(context.Background(), core.Memo{Title: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", memo.Title)
}

func TestCreateBackend_AMQPUnavailable(t *testing.T) {
	var buf bytes.Buffer
	f := quietFactory(&buf)
	f.dial = func(string, string, string) (*amqp.Client, error) { return nil, errors.New("connection refused") }

	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend, AMQPURL: "amqp://localhost:1/"})
	require.NoError(t, err)
	assert.Nil(t, res.AMQP)
	assert.Nil(t, res.Publisher, "no typed-nil publisher")
	assert.Contains(t, buf.String(), "continuing without publishing")
	assert.NoError(t, res.Cleanup())
}

func TestCreateBackend_Invalid(t *testing.T) {
	var buf bytes.Buffer
	_, err := quietFactory(&buf).CreateBackend(context.Background(), Config{Type: "sheets"})
	assert.Error(t, err)
}
