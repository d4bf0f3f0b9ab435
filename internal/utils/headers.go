package utils

import (
	"net/http"
	"net/url"
	"strings"
)

// FlattenHeaders lowercases header names and joins repeated values with ", ".
func FlattenHeaders(h http.Header) map[string]interface{} {
	result := make(map[string]interface{}, len(h))
	for name, values := range h {
		result[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	return result
}

// FlattenQuery keeps single-valued parameters as strings and repeated ones as lists.
func FlattenQuery(q url.Values) map[string]interface{} {
	result := make(map[string]interface{}, len(q))
	for name, values := range q {
		if len(values) == 1 {
			result[name] = values[0]
			continue
		}
		result[name] = values
	}
	return result
}
