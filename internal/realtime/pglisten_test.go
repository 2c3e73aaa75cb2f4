package realtime_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"fieldworks/internal/port"
	"fieldworks/internal/realtime"
)

func TestParsePayload(t *testing.T) {
	tenantID := uuid.New()

	ev := realtime.ParsePayload(tenantID.String())
	assert.Equal(t, port.ChangeRows, ev.Kind)
	assert.Equal(t, tenantID, ev.TenantID)

	ev = realtime.ParsePayload("garbage")
	assert.Equal(t, port.ChangeRows, ev.Kind)
	assert.Equal(t, uuid.Nil, ev.TenantID)
}
