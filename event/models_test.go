package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingKeyString(t *testing.T) {
	key := RoutingKey{Service: ServiceEmployee, Object: ObjectAddress, Request: RequestCreate}
	assert.Equal(t, "employee.address.create", key.String())

	key = RoutingKey{Service: ServiceWildcard, Object: ObjectWildcard, Request: RequestWildcard}
	assert.Equal(t, "*.*.*", key.String())
}

func TestParseRoutingKey(t *testing.T) {
	key, err := ParseRoutingKey("org_unit.engagement.terminate")
	require.NoError(t, err)
	assert.Equal(t, ServiceOrgUnit, key.Service)
	assert.Equal(t, ObjectEngagement, key.Object)
	assert.Equal(t, RequestTerminate, key.Request)
}

func TestParseRoutingKeyRoundtrip(t *testing.T) {
	for _, raw := range []string{
		"employee.address.create",
		"employee.it.edit",
		"org_unit.org_unit.refresh",
		"*.related_unit.*",
	} {
		key, err := ParseRoutingKey(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, raw, key.String())
	}
}

func TestParseRoutingKeyRejectsUnknownSegments(t *testing.T) {
	tests := []string{
		"person.address.create",
		"employee.addresses.create",
		"employee.address.delete",
		"employee.address",
		"employee.address.create.extra",
		"",
	}
	for _, raw := range tests {
		_, err := ParseRoutingKey(raw)
		assert.Error(t, err, raw)
	}
}

func TestNewRoutingKeyValidates(t *testing.T) {
	_, err := NewRoutingKey(ServiceEmployee, ObjectType("unknown"), RequestEdit)
	require.Error(t, err)
}

func TestPayloadJSON(t *testing.T) {
	raw := `{
		"uuid": "b8a563d0-9f9b-4dd8-bd42-e6a8d6a5b467",
		"object_uuid": "6f1520eb-5bd9-4728-b41c-a6c1dbdc4593",
		"time": "2024-03-01T12:30:00+01:00"
	}`
	var decoded Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, "b8a563d0-9f9b-4dd8-bd42-e6a8d6a5b467", decoded.UUID.String())
	assert.Equal(t, "6f1520eb-5bd9-4728-b41c-a6c1dbdc4593", decoded.ObjectUUID.String())
	assert.Equal(t, 2024, decoded.Time.Year())
	assert.Equal(t, time.March, decoded.Time.Month())

	_, offset := decoded.Time.Zone()
	assert.Equal(t, 3600, offset)
}
