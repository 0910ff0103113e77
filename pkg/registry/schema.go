// pkg/registry/schema.go
package registry

// ActionCatalog is the published description of every assistant action.
type ActionCatalog struct {
	Version     string   `json:"version"`
	LastUpdated string   `json:"lastUpdated"`
	Actions     []Action `json:"actions"`
}

type Action struct {
	Name             string                 `json:"name"`
	Description      string                 `json:"description"`
	Category         string                 `json:"category"`
	ExtractionSchema map[string]interface{} `json:"extractionSchema"`
	// Fields lists every answerable path of the draft, "<i>" standing for
	// a line index.
	Fields []string `json:"fields"`
	// ClarifyPaths are the questions asked for an empty draft.
	ClarifyPaths []string `json:"clarifyPaths"`
	ErrorCodes   []string `json:"errorCodes"`
}
