package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameFromPath(t *testing.T) {
	assert.Equal(t, "home", NameFromPath("/Users/me/.specht/home.yaml"))
	assert.Equal(t, "work.eu", NameFromPath("/tmp/work.eu.yaml"))
	assert.Equal(t, "plain", NameFromPath("plain"))
}

func TestNameKey_FoldsCase(t *testing.T) {
	assert.Equal(t, NameKey("x"), NameKey("X"))
	assert.NotEqual(t, NameKey("x"), NameKey("y"))

	def := TunnelDefinition{Name: "Home"}
	assert.Equal(t, NameKey("home"), def.Key())
}

func TestConnectionStatus_IsActive(t *testing.T) {
	active := []ConnectionStatus{StatusConnecting, StatusConnected, StatusReasserting, StatusDisconnecting}
	for _, s := range active {
		assert.True(t, s.IsActive(), s)
	}
	assert.False(t, StatusDisconnected.IsActive())
	assert.False(t, StatusInvalid.IsActive())
}

func TestConnectionStatus_Valid(t *testing.T) {
	assert.True(t, StatusReasserting.Valid())
	assert.False(t, ConnectionStatus("exploded").Valid())
}
