package humastar

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PageData is what a full-page template needs to boot Datastar: the
// initial signals and the SSE endpoints fetched on load.
type PageData struct {
	Signals map[string]any
	Inits   []string
}

// SignalsJSON returns the data-signals attribute value.
func (pd PageData) SignalsJSON() string {
	b, err := json.Marshal(pd.Signals)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// DataInit returns a Datastar data-init attribute value joining all SSE init URLs.
// e.g. "@get('/api/v1/viewer/panels')"
func (pd PageData) DataInit() string {
	parts := make([]string, len(pd.Inits))
	for i, url := range pd.Inits {
		parts[i] = fmt.Sprintf("@get('%s')", url)
	}
	return strings.Join(parts, "; ")
}
