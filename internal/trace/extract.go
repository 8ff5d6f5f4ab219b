package trace

// eventContainerKeys are tried in order when locating the event array inside
// a trace object. Direct event logs use "events"; observability exports nest
// them under output/metadata or ship them as observations.
var eventContainerKeys = []string{"events", "output", "metadata", "observations"}

// ExtractEventStream locates the raw event array inside an arbitrary trace
// object. It never fails: unrecognised shapes yield an empty slice.
func ExtractEventStream(obj Object) []any {
	if obj == nil {
		return []any{}
	}
	for _, key := range eventContainerKeys {
		value, ok := obj[key]
		if !ok {
			continue
		}
		if list, ok := mappingList(value); ok {
			return list
		}
		if nested, ok := Map(value); ok {
			if list, ok := mappingList(nested["events"]); ok {
				return list
			}
		}
	}
	if _, ok := obj["event_type"]; ok {
		return []any{obj}
	}
	return []any{}
}

// mappingList accepts a list whose every element is a mapping. The empty list
// qualifies.
func mappingList(v any) ([]any, bool) {
	list, ok := List(v)
	if !ok {
		return nil, false
	}
	for _, item := range list {
		if _, ok := Map(item); !ok {
			return nil, false
		}
	}
	return list, true
}
