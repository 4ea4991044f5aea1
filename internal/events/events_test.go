package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskRequestEvent(t *testing.T) {
	payload := map[string]string{"analysis_id": "a1"}

	event, err := NewTaskRequestEvent("similarity_analysis", payload)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "similarity_analysis", event.Type)
	assert.False(t, event.CreatedAt.IsZero())
	assert.JSONEq(t, `{"analysis_id":"a1"}`, string(event.Payload))

	var decoded map[string]string
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestNewTaskRequestEvent_UnencodablePayload(t *testing.T) {
	_, err := NewTaskRequestEvent("bad", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode bad payload")
}

func TestTaskRequestEventValidate(t *testing.T) {
	valid := func() *TaskRequestEvent {
		return &TaskRequestEvent{ID: uuid.New(), Type: "t", Payload: json.RawMessage(`{}`)}
	}

	tests := []struct {
		name   string
		event  func() *TaskRequestEvent
		errMsg string
	}{
		{name: "valid", event: valid},
		{name: "nil", event: func() *TaskRequestEvent { return nil }, errMsg: "nil event"},
		{name: "missing id", event: func() *TaskRequestEvent {
			e := valid()
			e.ID = uuid.Nil
			return e
		}, errMsg: "missing id"},
		{name: "missing type", event: func() *TaskRequestEvent {
			e := valid()
			e.Type = ""
			return e
		}, errMsg: "missing type"},
		{name: "broken payload", event: func() *TaskRequestEvent {
			e := valid()
			e.Payload = json.RawMessage(`{`)
			return e
		}, errMsg: "payload is not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event().Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidEvent)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
