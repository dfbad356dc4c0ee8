package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	scierrors "github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupLogger("debug", "json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { scierrors.SetWarningSink(nil) })

	logger.With(DatasetKey, "Wheat").Info("mapper fitted",
		OperationKey, OperationFit,
		SamplesKey, 210,
		FeaturesKey, 7,
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "mapper fitted", entries[0]["message"])
	assert.Equal(t, "Wheat", entries[0][DatasetKey])
	assert.Equal(t, OperationFit, entries[0][OperationKey])
	assert.Equal(t, 210.0, entries[0][SamplesKey])
	assert.Same(t, logger, GetLogger())
}

func TestSetupLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupLogger("warn", "json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { scierrors.SetWarningSink(nil) })

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["message"])
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), LevelError))
}

func TestSetupLogger_InvalidInput(t *testing.T) {
	_, err := SetupLogger("verbose", "json", nil)
	assert.Error(t, err)

	_, err = SetupLogger("info", "xml", nil)
	assert.Error(t, err)
}

func TestZerologLogger_ErrorCarriesStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupLogger("info", "json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { scierrors.SetWarningSink(nil) })

	cause := scierrors.NewValueError("ReadCSV", "ragged row")
	logger.Error("load failed", cause, FilePathKey, "csv/Audit.csv")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0][ErrAttrKey], "ragged row")
	assert.Equal(t, "csv/Audit.csv", entries[0][FilePathKey])
	assert.NotEmpty(t, entries[0][StacktraceAttrKey])
}

func TestZerologLogger_ReceivesWarnings(t *testing.T) {
	var buf bytes.Buffer
	_, err := SetupLogger("info", "json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { scierrors.SetWarningSink(nil) })

	scierrors.Warn(scierrors.NewConvergenceWarning("lbfgs", 100, "gradient norm above tolerance"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "ConvergenceWarning", entries[0]["type"])
	assert.Equal(t, "lbfgs", entries[0]["algorithm"])
}

func TestTestLogger_CapturesFields(t *testing.T) {
	logger, _ := NewTestLogger(LevelDebug)

	logger.With(DatasetKey, "Auto").Info("fixture written", FilePathKey, "csv/RidgeAuto.csv")
	logger.Error("model failed", fmt.Errorf("singular matrix"), ModelNameKey, "LinearRegressionAuto")

	assert.True(t, logger.ContainsMessage("fixture written"))
	assert.True(t, logger.ContainsField(DatasetKey, "Auto"))
	assert.True(t, logger.ContainsField(ErrAttrKey, "singular matrix"))
	assert.True(t, logger.ContainsField(ModelNameKey, "LinearRegressionAuto"))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	logger.Clear()
	assert.False(t, logger.ContainsMessage("fixture written"))
}

func TestTestLogger_LevelFiltering(t *testing.T) {
	logger, buffer := NewTestLogger(LevelWarn)
	logger.Info("ignored")
	logger.Warn("captured")

	assert.NotContains(t, buffer.String(), "ignored")
	assert.Contains(t, buffer.String(), "captured")
}

func TestGetLoggerWithName(t *testing.T) {
	var buf bytes.Buffer
	_, err := SetupLogger("info", "json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() {
		scierrors.SetWarningSink(nil)
		SetDefault(NewZerologLogger(zerolog.Nop()))
	})

	GetLoggerWithName("fixture.generator").Info("dataset done")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "fixture.generator", entries[0][ComponentKey])
}

func TestLevelNamesRoundTrip(t *testing.T) {
	for _, l := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		got, err := ToLogLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
	_, err := ToLogLevel("verbose")
	assert.Error(t, err)
}
