package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmsas95/dosetrack/internal/config"
	"github.com/gmsas95/dosetrack/internal/notify"
	"github.com/gmsas95/dosetrack/internal/store"
)

func setupApp(t *testing.T) *App {
	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)

	st, err := store.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	application, err := New(cfg, st, zap.NewNop(), "test")
	require.NoError(t, err)
	return application
}

func TestNewWiresComponents(t *testing.T) {
	application := setupApp(t)

	assert.Equal(t, "test", application.Version)
	assert.NotNil(t, application.Meds)
	assert.NotNil(t, application.Coordinator)
	assert.NotNil(t, application.Reminders)
	assert.NotNil(t, application.Sweeper)
	assert.NotNil(t, application.Dispatcher)
}

func TestDispatcherAlwaysHasLogChannel(t *testing.T) {
	application := setupApp(t)

	// No channels are enabled in a fresh config, so the only delivery
	// target is the log notifier.
	delivered := application.Dispatcher.Dispatch(context.Background(), notify.Reminder{
		Kind: notify.KindDose,
		Name: "Lisinopril",
	})
	assert.Equal(t, 1, delivered)
}
