package validators

import (
	"context"
	"strings"

	"github.com/mssola/useragent"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// botMarkers catches automation tools that do not announce themselves as
// crawlers in a way the user agent parser recognizes.
var botMarkers = []string{
	"curl/",
	"wget/",
	"python-requests",
	"go-http-client",
	"httpclient",
	"okhttp",
	"headlesschrome",
	"phantomjs",
	"selenium",
	"scrapy",
}

// DeviceValidator classifies the client user agent.
type DeviceValidator struct{}

// NewDeviceValidator creates the built-in device validator.
func NewDeviceValidator() *DeviceValidator {
	return &DeviceValidator{}
}

// ValidateDevice parses the user agent string. An empty or unparseable
// string is invalid; a recognized automated client is valid but flagged.
func (v *DeviceValidator) ValidateDevice(ctx context.Context, ua string) (*domain.RawResult, error) {
	result := &domain.RawResult{
		Provider: "ua-parser",
		Flags:    map[string]bool{},
	}

	ua = strings.TrimSpace(ua)
	if ua == "" {
		result.ReasonCodes = append(result.ReasonCodes, "empty_user_agent")
		return result, nil
	}

	parsed := useragent.New(ua)
	browser, version := parsed.Browser()

	result.Attributes = map[string]any{
		"browser":         browser,
		"browser_version": version,
		"os":              parsed.OS(),
		"mobile":          parsed.Mobile(),
	}

	if parsed.Bot() || matchesBotMarker(ua) {
		result.Flags[domain.FlagBot] = true
		result.ReasonCodes = append(result.ReasonCodes, "automated_client")
	}

	if browser == "" && !result.Flags[domain.FlagBot] {
		result.ReasonCodes = append(result.ReasonCodes, "unrecognized_user_agent")
		result.PartialSignal = true
		return result, nil
	}

	result.Valid = true
	return result, nil
}

func matchesBotMarker(ua string) bool {
	lower := strings.ToLower(ua)
	for _, marker := range botMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
