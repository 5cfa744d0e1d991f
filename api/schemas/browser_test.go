package schemas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
)

func TestBrowserProfile_BrowserName(t *testing.T) {
	tests := []struct {
		name    string
		profile schemas.BrowserProfile
		want    string
	}{
		{"capability wins", schemas.BrowserProfile{Name: "ff", Browser: "firefox", Capabilities: schemas.Capabilities{"browserName": "chrome"}}, "chrome"},
		{"browser field", schemas.BrowserProfile{Name: "ff", Browser: "firefox"}, "firefox"},
		{"falls back to name", schemas.BrowserProfile{Name: "safari"}, "safari"},
		{"empty capability ignored", schemas.BrowserProfile{Name: "x", Browser: "edge", Capabilities: schemas.Capabilities{"browserName": ""}}, "edge"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.BrowserName())
		})
	}
}

func TestBrowserProfile_SessionCapabilities(t *testing.T) {
	shared := schemas.Capabilities{"acceptInsecureCerts": true}
	p := schemas.BrowserProfile{Name: "ff", Browser: "firefox", Capabilities: shared}

	caps := p.SessionCapabilities()
	assert.Equal(t, schemas.Capabilities{"acceptInsecureCerts": true, "browserName": "firefox"}, caps)
	assert.NotContains(t, shared, "browserName", "the profile's own map must not be modified")
}

func TestBrowserProfile_Validate(t *testing.T) {
	assert.NoError(t, schemas.BrowserProfile{Name: "chrome"}.Validate())
	assert.Error(t, schemas.BrowserProfile{Name: "  "}.Validate())
	assert.Error(t, schemas.BrowserProfile{Name: "two words"}.Validate())
}

func TestRunReport_Counts(t *testing.T) {
	r := &schemas.RunReport{Results: []schemas.TestResult{
		{Status: schemas.StatusPassed},
		{Status: schemas.StatusPassed},
		{Status: schemas.StatusSkipped},
	}}
	assert.Equal(t, map[schemas.Status]int{schemas.StatusPassed: 2, schemas.StatusSkipped: 1}, r.Counts())
	assert.True(t, r.Succeeded(), "skipped tests do not fail a run")

	r.Results = append(r.Results, schemas.TestResult{Status: schemas.StatusError})
	assert.False(t, r.Succeeded())
}
