// Package ports defines the interfaces (ports) for the protocol layer.
// These are contracts that adapters must implement.
package ports

import "context"

// Category selects which gateway endpoint a request is posted to.
type Category string

const (
	// CategoryOrder covers new-charge operations (RES, SAL).
	CategoryOrder Category = "order"
	// CategoryMaintenance covers operations on an existing PAYID
	// (SAS, RFD, RFS, DES, DEL, REN).
	CategoryMaintenance Category = "maintenance"
	// CategoryQuery covers status/alias lookups.
	CategoryQuery Category = "query"
	// CategoryEcommerce is the browser-posted payment page; requests are
	// never sent there server-to-server.
	CategoryEcommerce Category = "ecommerce"
)

// Request is one signed payload bound for the gateway.
type Request struct {
	Category Category
	Method   string
	Payload  map[string]string
	Headers  map[string]string
}

// Response is the parsed gateway reply. Fields holds the flat attribute map
// scraped from the single response tag; Body keeps the raw text for logging.
type Response struct {
	Status  int
	Headers map[string]string
	Fields  map[string]string
	Body    string
}

// TransportClient performs a single gateway round trip. Implementations
// classify the NCERROR result: a non-zero code yields a gateway-category
// error alongside the parsed response.
type TransportClient interface {
	Execute(ctx context.Context, req Request) (*Response, error)
}
