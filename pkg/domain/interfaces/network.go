package interfaces

import (
	"net/http"

	"github.com/m-mizutani/msipv6/pkg/domain/model"
)

// Transport is an HTTP(S) connector whose connections are either forced to
// IPv6 or observed for diagnostics
type Transport interface {
	// Client returns an HTTP client whose every new connection goes through
	// the transport's dialer
	Client() *http.Client

	// Mode returns the dial mode fixed at construction
	Mode() model.DialMode

	// LastObservation returns the most recent successful connect. It never
	// blocks the data path.
	LastObservation() model.ConnectionObservation
}
