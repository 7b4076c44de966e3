package connman

import "github.com/yllada/connman-indicator/common"

// serviceEntry is one (path, properties) pair of a service list reply.
type serviceEntry struct {
	path  string
	props Properties
}

func asProperties(v interface{}) (Properties, bool) {
	switch m := v.(type) {
	case Properties:
		return m, true
	case map[string]interface{}:
		return Properties(m), true
	default:
		return nil, false
	}
}

// decodePropertyChanged unpacks the (name, value) arguments of a
// PropertyChanged signal.
func decodePropertyChanged(args []interface{}) (string, interface{}, bool) {
	if len(args) < 2 {
		return "", nil, false
	}
	name, ok := args[0].(string)
	if !ok {
		return "", nil, false
	}
	return name, args[1], true
}

func firstProperties(body []interface{}) (Properties, bool) {
	if len(body) == 0 {
		return nil, false
	}
	return asProperties(body[0])
}

func firstString(body []interface{}) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	return asString(body[0])
}

// decodeServiceList unpacks a GetServices reply: a list of
// (object path, property map) pairs. A missing property map is allowed.
func decodeServiceList(body []interface{}) ([]serviceEntry, error) {
	if len(body) == 0 {
		return nil, common.ErrMalformedReply
	}
	list, ok := body[0].([]interface{})
	if !ok {
		if body[0] == nil {
			return nil, nil
		}
		return nil, common.ErrMalformedReply
	}

	entries := make([]serviceEntry, 0, len(list))
	for _, item := range list {
		var entry serviceEntry
		switch pair := item.(type) {
		case []interface{}:
			if len(pair) == 0 {
				return nil, common.ErrMalformedReply
			}
			p, ok := pair[0].(string)
			if !ok {
				return nil, common.ErrMalformedReply
			}
			entry.path = p
			if len(pair) > 1 {
				props, ok := asProperties(pair[1])
				if !ok {
					return nil, common.ErrMalformedReply
				}
				entry.props = props
			}
		case string:
			entry.path = pair
		default:
			return nil, common.ErrMalformedReply
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
