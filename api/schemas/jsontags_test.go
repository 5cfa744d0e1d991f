package schemas_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
)

// TestStructJSONTags pins the field names of the persisted and reported
// shapes; reports written by older versions must stay readable.
func TestStructJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    interface{}
		expectedTags map[string]string
	}{
		{
			name:      "TestResult",
			structRef: schemas.TestResult{},
			expectedTags: map[string]string{
				"Suite":    "suite",
				"Name":     "name",
				"Browser":  "browser,omitempty",
				"Script":   "script,omitempty",
				"Groups":   "groups,omitempty",
				"Status":   "status",
				"Message":  "message,omitempty",
				"Started":  "started",
				"Duration": "duration",
			},
		},
		{
			name:      "RunReport",
			structRef: schemas.RunReport{},
			expectedTags: map[string]string{
				"RunID":    "run_id",
				"Suite":    "suite",
				"Started":  "started",
				"Duration": "duration",
				"Results":  "results",
			},
		},
		{
			name:      "Timeouts",
			structRef: schemas.Timeouts{},
			expectedTags: map[string]string{
				"Implicit": "implicit,omitempty",
				"PageLoad": "pageLoad,omitempty",
				"Script":   "script,omitempty",
			},
		},
		{
			name:      "BrowserProfile",
			structRef: schemas.BrowserProfile{},
			expectedTags: map[string]string{
				"Name":             "name",
				"Browser":          "browser,omitempty",
				"Capabilities":     "capabilities,omitempty",
				"CapabilitiesJSON": "-",
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			typ := reflect.TypeOf(tc.structRef)
			assert.Equal(t, len(tc.expectedTags), typ.NumField(), "field count changed; update the expected tags")
			for field, want := range tc.expectedTags {
				f, ok := typ.FieldByName(field)
				if assert.True(t, ok, "field %s missing", field) {
					assert.Equal(t, want, f.Tag.Get("json"), "json tag of %s.%s", tc.name, field)
				}
			}
		})
	}
}
