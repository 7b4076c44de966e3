package connman

import "github.com/yllada/connman-indicator/common"

// Properties is a property map as delivered by the link, with transport
// wrappers already removed.
type Properties map[string]interface{}

// Service property names.
const (
	propType               = "Type"
	propName               = "Name"
	propMode               = "Mode"
	propSecurity           = "Security"
	propState              = "State"
	propStrength           = "Strength"
	propFavourite          = "Favourite"
	propImmutable          = "Immutable"
	propAutoConnect        = "AutoConnect"
	propRoaming            = "Roaming"
	propPassphraseRequired = "PassphraseRequired"
	propPassphrase         = "Passphrase"
)

// Manager property names.
const (
	propAvailableTechnologies = "AvailableTechnologies"
	propEnabledTechnologies   = "EnabledTechnologies"
	propServices              = "Services"
	propOfflineMode           = "OfflineMode"
	propPowered               = "Powered"
)

var knownServiceProperties = []string{
	propType, propName, propMode, propSecurity, propState, propStrength,
	propFavourite, propImmutable, propAutoConnect, propRoaming,
	propPassphraseRequired,
}

func (p Properties) clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (p Properties) str(name string) (string, bool) {
	v, ok := p[name]
	if !ok {
		return "", false
	}
	return asString(v)
}

func (p Properties) flag(name string) (bool, bool) {
	v, ok := p[name]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (p Properties) strings(name string) ([]string, bool) {
	v, ok := p[name]
	if !ok {
		return nil, false
	}
	return asStrings(v)
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asStrings(v interface{}) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return common.CopyStrings(list), true
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// asPercent coerces any integer width into 0..100.
func asPercent(v interface{}) (uint8, bool) {
	var n int64
	switch x := v.(type) {
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		if x > 100 {
			return 100, true
		}
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case int:
		n = int64(x)
	default:
		return 0, false
	}
	if n < 0 {
		n = 0
	}
	if n > 100 {
		n = 100
	}
	return uint8(n), true
}
