package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matsuo0603/ShareFileBC/config"
)

func TestFTPRootID(t *testing.T) {
	f := &FTPGateway{config: &config.FTPConfig{BasePath: "/share/"}}
	require.Equal(t, "/share", f.RootID())
}

func TestFTPGrantRead_NotSupported(t *testing.T) {
	f := &FTPGateway{config: &config.FTPConfig{BasePath: "/share"}}
	err := f.GrantRead(context.Background(), "/share/app/a.txt", "alice@example.com")
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestCreateGateway_UnsupportedType(t *testing.T) {
	_, err := CreateGateway(&config.GatewayConfig{GatewayType: "gopher"})
	require.Error(t, err)
}

func TestKeyHelpers(t *testing.T) {
	require.Equal(t, "2025-06-25", keyName("app/Alice/2025-06-25/"))
	require.Equal(t, "a.txt", keyName("app/Alice/2025-06-25/a.txt"))
	require.Equal(t, "app/Alice/", keyParent("app/Alice/2025-06-25/"))
	require.Equal(t, "app/Alice/2025-06-25/", keyParent("app/Alice/2025-06-25/a.txt"))
	require.Equal(t, "", keyParent("app/"))
}
