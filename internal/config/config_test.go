package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMTU(t *testing.T) {
	assert.NoError(t, ValidateMTU(1500))
	assert.Error(t, ValidateMTU(0))
	assert.Error(t, ValidateMTU(-1))
	assert.Error(t, ValidateMTU(8))
}

func TestValidateRole(t *testing.T) {
	assert.NoError(t, ValidateRole("sender"))
	assert.NoError(t, ValidateRole("receiver"))
	assert.Error(t, ValidateRole("observer"))
}

func TestValidateInterfaceName(t *testing.T) {
	assert.NoError(t, ValidateInterfaceName("eth0"))
	assert.Error(t, ValidateInterfaceName(""))
}

func TestValidateHostAndPort(t *testing.T) {
	assert.NoError(t, ValidateHost("127.0.0.1"))
	assert.Error(t, ValidateHost(""))
	assert.Error(t, ValidateHost("bad host!"))

	assert.NoError(t, ValidatePort(19000))
	assert.Error(t, ValidatePort(0))
	assert.Error(t, ValidatePort(70000))
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Field: "interface", Message: "not found", Value: "eth9"}
	require.Contains(t, err.Error(), "interface")
	require.Contains(t, err.Error(), "eth9")
}

func TestDefaultMonitorSettings(t *testing.T) {
	s := DefaultMonitorSettings()
	assert.Equal(t, MTUDefault, s.MTU)
	assert.Equal(t, string(RoleReceiver), s.Role)
}
