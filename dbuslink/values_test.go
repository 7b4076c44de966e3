package dbuslink

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yllada/connman-indicator/common"
	"github.com/yllada/connman-indicator/connman"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected interface{}
	}{
		{"string", "wifi", "wifi"},
		{"byte", uint8(70), uint8(70)},
		{"variant", dbus.MakeVariant("ready"), "ready"},
		{"nested variant", dbus.MakeVariant(dbus.MakeVariant(true)), true},
		{"object path", dbus.ObjectPath("/net/connman/service/x"), "/net/connman/service/x"},
		{"path list", []dbus.ObjectPath{"/a", "/b"}, []string{"/a", "/b"}},
		{"string list", []string{"psk", "wps"}, []string{"psk", "wps"}},
		{
			"property map",
			map[string]dbus.Variant{"Name": dbus.MakeVariant("Home"), "Strength": dbus.MakeVariant(uint8(55))},
			map[string]interface{}{"Name": "Home", "Strength": uint8(55)},
		},
		{
			"nested dict",
			map[string]dbus.Variant{"IPv4": dbus.MakeVariant(map[string]dbus.Variant{"Method": dbus.MakeVariant("dhcp")})},
			map[string]interface{}{"IPv4": map[string]interface{}{"Method": "dhcp"}},
		},
		{"generic map", map[string]string{"a": "b"}, map[string]interface{}{"a": "b"}},
		{"int slice", []int32{1, 2}, []interface{}{int32(1), int32(2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalize(tt.input))
		})
	}
}

func TestNormalize_ServiceList(t *testing.T) {
	// a(oa{sv}) as godbus decodes it.
	body := []interface{}{[][]interface{}{
		{dbus.ObjectPath("/net/connman/service/wifi_a"), map[string]dbus.Variant{
			"Type":     dbus.MakeVariant("wifi"),
			"Security": dbus.MakeVariant([]string{"psk"}),
		}},
	}}

	got := normalizeAll(body)
	require.Len(t, got, 1)
	list, ok := got[0].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
	pair, ok := list[0].([]interface{})
	require.True(t, ok)
	assert.Equal(t, "/net/connman/service/wifi_a", pair[0])
	assert.Equal(t, map[string]interface{}{"Type": "wifi", "Security": []string{"psk"}}, pair[1])
}

func TestToWire(t *testing.T) {
	got := toWire([]interface{}{"Passphrase", connman.Variant{Value: "secret"}})
	require.Len(t, got, 2)
	assert.Equal(t, "Passphrase", got[0])
	assert.Equal(t, dbus.MakeVariant("secret"), got[1])
}

func TestInterfaceFor(t *testing.T) {
	assert.Equal(t, common.ManagerInterface, interfaceFor("/"))
	assert.Equal(t, common.TechnologyInterface, interfaceFor("/net/connman/technology/wifi"))
	assert.Equal(t, common.ServiceInterface, interfaceFor("/net/connman/service/ethernet_x"))
}

func TestConvertError(t *testing.T) {
	t.Run("daemon error", func(t *testing.T) {
		err := convertError("/s", "Connect", dbus.Error{
			Name: "net.connman.Error.InvalidArguments",
			Body: []interface{}{"Invalid arguments"},
		})
		assert.Equal(t, "net.connman.Error.InvalidArguments", err.Name)
		assert.Equal(t, "Invalid arguments", err.Reason())
		assert.False(t, err.Timeout)
	})

	t.Run("no reply", func(t *testing.T) {
		err := convertError("/s", "Connect", &dbus.Error{Name: "org.freedesktop.DBus.Error.NoReply"})
		assert.True(t, err.Timeout)
		assert.True(t, errors.Is(err, common.ErrTimeout))
	})

	t.Run("deadline", func(t *testing.T) {
		err := convertError("/s", "Disconnect", context.DeadlineExceeded)
		assert.True(t, errors.Is(err, common.ErrTimeout))
	})

	t.Run("other", func(t *testing.T) {
		err := convertError("/", "GetServices", errors.New("connection closed"))
		assert.Equal(t, "connection closed", err.Reason())
		assert.Equal(t, "/ GetServices: connection closed", err.Error())
	})
}
