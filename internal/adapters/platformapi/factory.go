package platformapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Amund211/coursesync/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const mockBaseURL = "http://platform.mock"

// NewHttpClientOrMock returns an instrumented HTTP client for the configured platform API.
// Development without a platform URL gets the in-memory mock platform.
func NewHttpClientOrMock(conf config.Config, nowFunc func() time.Time) (HttpClient, string, error) {
	if conf.PlatformAPIURL() != "" {
		return &http.Client{
			Timeout:   maxRequestTime,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}, conf.PlatformAPIURL(), nil
	}

	if conf.IsDevelopment() {
		return NewMockPlatform(nowFunc), mockBaseURL, nil
	}

	return nil, "", fmt.Errorf("missing platform API URL in non-development environment")
}
