package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServeCmd(t *testing.T) {
	cmd := newServeCmd()

	assert.Equal(t, "serve", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	addrFlag := cmd.Flags().Lookup(serveAddrFlagName)
	require.NotNil(t, addrFlag)
	assert.Equal(t, defaultServeAddr, addrFlag.DefValue)
}
