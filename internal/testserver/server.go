// Package testserver runs a gin-based x402 resource server for tests. Each
// route either answers with a fixed status or demands payment and answers
// once a payment header is present.
package testserver

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"

	x402 "github.com/Orac-G/x402-pay-with-safety"
	"github.com/Orac-G/x402-pay-with-safety/types"
)

// Route describes how one path behaves
type Route struct {
	// Status, when non-zero, is returned for every request with RawBody,
	// ignoring payment entirely.
	Status  int
	RawBody string

	// Version is the x402Version advertised in the 402 (default 2)
	Version int

	// Accepts is the requirement set returned on an unpaid request
	Accepts []types.PaymentRequirements

	// RawRequired, when set, is sent verbatim as the 402 body instead of
	// Accepts; paid requests are matched against its parsed accepts.
	RawRequired string

	// HeaderOnly sends the requirement set only in PAYMENT-REQUIRED
	HeaderOnly bool

	// PaidStatus is returned once a payment header is present (default 200)
	PaidStatus int

	// Body is the JSON returned with PaidStatus
	Body any

	// Settlement, when set, is echoed in the payment response header
	Settlement *types.SettleResponse
}

// Received is one request as seen by the server
type Received struct {
	Headers http.Header
	Body    []byte
	Payment map[string]any
}

// Server is an httptest server backed by a gin engine
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]Route
	received map[string][]Received
}

// New starts a server with no routes; unknown paths return 404
func New() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		routes:   make(map[string]Route),
		received: make(map[string][]Received),
	}

	engine := gin.New()
	engine.POST("/*path", s.handle)
	s.Server = httptest.NewServer(engine)
	return s
}

// Handle installs or replaces the behavior for path
func (s *Server) Handle(path string, route Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = route
}

// URL returns the absolute URL for path
func (s *Server) URL(path string) string {
	return s.Server.URL + path
}

// Hits returns how many requests path received
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received[path])
}

// Requests returns the requests path received, in order
func (s *Server) Requests(path string) []Received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Received(nil), s.received[path]...)
}

func (s *Server) handle(c *gin.Context) {
	path := c.Param("path")
	body, _ := io.ReadAll(c.Request.Body)

	rec := Received{Headers: c.Request.Header.Clone(), Body: body}
	header := c.GetHeader(x402.HeaderPaymentSignature)
	if header == "" {
		header = c.GetHeader(x402.HeaderXPayment)
	}
	var payment []byte
	if header != "" {
		if raw, err := base64.StdEncoding.DecodeString(header); err == nil {
			payment = raw
			_ = json.Unmarshal(raw, &rec.Payment)
		}
	}

	s.mu.Lock()
	route, ok := s.routes[path]
	s.received[path] = append(s.received[path], rec)
	s.mu.Unlock()

	if !ok {
		c.String(http.StatusNotFound, "no route for "+path)
		return
	}

	if route.Status != 0 {
		c.Data(route.Status, "application/json", []byte(route.RawBody))
		return
	}

	version := route.Version
	if version == 0 {
		version = x402.ProtocolVersion
	}

	accepts := route.Accepts
	if route.RawRequired != "" {
		if header == "" {
			c.Data(http.StatusPaymentRequired, "application/json", []byte(route.RawRequired))
			return
		}
		if parsed, err := types.ParsePaymentRequired([]byte(route.RawRequired)); err == nil {
			accepts = parsed.Accepts
			version = parsed.X402Version
		}
	}

	if header == "" {
		required := types.PaymentRequired{X402Version: version, Error: "payment required", Accepts: route.Accepts}
		if route.Accepts == nil {
			required.Accepts = []types.PaymentRequirements{}
		}
		if route.HeaderOnly {
			raw, _ := json.Marshal(required)
			c.Header(x402.HeaderPaymentRequired, base64.StdEncoding.EncodeToString(raw))
			c.JSON(http.StatusPaymentRequired, gin.H{})
			return
		}
		c.JSON(http.StatusPaymentRequired, required)
		return
	}

	if !matchesAny(version, payment, accepts) {
		c.JSON(http.StatusPaymentRequired, types.PaymentRequired{
			X402Version: version,
			Error:       "payment does not match any offered requirement",
			Accepts:     accepts,
		})
		return
	}

	if route.Settlement != nil {
		raw, _ := json.Marshal(route.Settlement)
		name := x402.HeaderPaymentResponse
		if version == x402.ProtocolVersionV1 {
			name = x402.HeaderXPaymentResponse
		}
		c.Header(name, base64.StdEncoding.EncodeToString(raw))
	}

	status := route.PaidStatus
	if status == 0 {
		status = http.StatusOK
	}
	if route.Body == nil {
		c.JSON(status, gin.H{})
		return
	}
	c.JSON(status, route.Body)
}

func matchesAny(version int, payment []byte, accepts []types.PaymentRequirements) bool {
	for _, req := range accepts {
		if ok, err := types.MatchPayloadToRequirements(version, payment, req); err == nil && ok {
			return true
		}
	}
	return false
}
