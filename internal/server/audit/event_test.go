package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dmitrijs2005/campusgate/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []Event
	err    error
}

func (r *recordingSink) Record(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestLogSink_LevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(logging.NewJSONLogger(&buf, slog.LevelDebug))

	require.NoError(t, sink.Record(context.Background(), Event{Type: EventTheftDetected, UserID: 7, IPAddress: "10.0.0.1"}))
	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"event":"theft_detected"`)
	assert.Contains(t, out, `"user_id":7`)
	assert.Contains(t, out, `"module":"audit"`)

	buf.Reset()
	require.NoError(t, sink.Record(context.Background(), Event{Type: EventLogin, UserID: 7, TokenID: "jti"}))
	assert.Contains(t, buf.String(), `"level":"INFO"`)
	assert.Contains(t, buf.String(), `"jti":"jti"`)
}

func TestTee_FansOutAndJoinsErrors(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{err: errors.New("b failed")}
	c := &recordingSink{}

	err := Tee{a, nil, b, c}.Record(context.Background(), Event{Type: EventLogout, UserID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b failed")
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.Len(t, c.events, 1)
}
