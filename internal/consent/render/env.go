package render

import (
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

// ClientEnv describes the device the form was filled on. Every field is
// optional and only ends up in the document.
type ClientEnv struct {
	UserAgent        string `json:"userAgent" yaml:"userAgent"`
	ScreenResolution string `json:"screenResolution" yaml:"screenResolution"`
	Platform         string `json:"platform" yaml:"platform"`
	Language         string `json:"language" yaml:"language"`
}

// Browser summarises the user agent as "Name Version (OS)", or "" when
// nothing useful can be parsed.
func (e ClientEnv) Browser() string {
	if strings.TrimSpace(e.UserAgent) == "" {
		return ""
	}
	ua := useragent.New(e.UserAgent)
	name, version := ua.Browser()
	if name == "" {
		return ""
	}

	out := strings.TrimSpace(name + " " + version)
	if os := ua.OS(); os != "" {
		out = fmt.Sprintf("%s (%s)", out, os)
	}
	if ua.Mobile() {
		out += " mobile"
	}
	return out
}
