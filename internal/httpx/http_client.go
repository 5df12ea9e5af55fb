package httpx

import (
	"net/http"
	"time"
)

const defaultExternalHTTPTimeout = 90 * time.Second

var externalHTTPClient = &http.Client{
	Timeout: defaultExternalHTTPTimeout,
}

// ConfigureExternalHTTPClient sets the timeout shared by every outbound call
// to the model providers. Non-positive values restore the default.
func ConfigureExternalHTTPClient(seconds int) time.Duration {
	timeout := defaultExternalHTTPTimeout
	if seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}
	externalHTTPClient.Timeout = timeout
	return timeout
}

func ExternalHTTPClient() *http.Client {
	return externalHTTPClient
}
