package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/carvesec/carve/pkg/log"
	"github.com/carvesec/carve/pkg/store"
)

const (
	// DefaultListenAddr serves the overlay from the management address.
	DefaultListenAddr = ":53"

	// DefaultUpstream is the fallback for queries outside the overlay.
	DefaultUpstream = "8.8.8.8:53"

	// answerTTL is deliberately short; box addresses move on restore.
	answerTTL = 5

	lookupTimeout = 2 * time.Second
)

// Config holds DNS server configuration.
type Config struct {
	ListenAddr string
	Upstream   string
}

// Server answers A queries for overlay box names out of the store and
// forwards everything else upstream.
type Server struct {
	zones      map[string]*store.Store // "{competition}.{tld}." suffix
	listenAddr string
	upstream   string
	dnsServer  *dns.Server
	mu         sync.RWMutex
	running    bool
}

// NewServer creates a server over one store per competition.
func NewServer(stores []*store.Store, config *Config) *Server {
	if config == nil {
		config = &Config{}
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
	if config.Upstream == "" {
		config.Upstream = DefaultUpstream
	}

	zones := make(map[string]*store.Store, len(stores))
	for _, st := range stores {
		comp := st.Competition()
		zones[strings.ToLower(comp.Name+"."+comp.TopLevelDomain()+".")] = st
	}
	return &Server{
		zones:      zones,
		listenAddr: config.ListenAddr,
		upstream:   config.Upstream,
	}
}

// Start begins serving UDP queries. It returns once the listener is
// bound; errors after that are logged.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("DNS server already running")
	}
	s.running = true
	s.mu.Unlock()

	pc, err := net.ListenPacket("udp", s.listenAddr)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("bind %s: %w", s.listenAddr, err)
	}

	mux := dns.NewServeMux()
	mux.HandleFunc(".", s.handleQuery)
	s.dnsServer = &dns.Server{PacketConn: pc, Handler: mux}

	logger := log.WithComponent("dns")
	started := make(chan struct{})
	s.dnsServer.NotifyStartedFunc = func() { close(started) }

	errCh := make(chan error, 1)
	go func() {
		if err := s.dnsServer.ActivateAndServe(); err != nil {
			logger.Error().Err(err).Msg("DNS server error")
			errCh <- err
		}
	}()

	// Shutdown before the listener goroutine is serving fails, so wait
	// until it reports started.
	select {
	case <-started:
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	logger.Info().
		Str("address", pc.LocalAddr().String()).
		Int("zones", len(s.zones)).
		Msg("DNS server started")
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dnsServer == nil || s.dnsServer.PacketConn == nil {
		return s.listenAddr
	}
	return s.dnsServer.PacketConn.LocalAddr().String()
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	if s.dnsServer != nil {
		return s.dnsServer.Shutdown()
	}
	return nil
}

func (s *Server) handleQuery(w dns.ResponseWriter, r *dns.Msg) {
	if len(r.Question) == 0 {
		return
	}
	q := r.Question[0]
	name := strings.ToLower(q.Name)

	st, relative := s.zoneFor(name)
	if st == nil {
		s.forwardQuery(w, r)
		return
	}

	msg := &dns.Msg{}
	msg.SetReply(r)
	msg.Authoritative = true

	if q.Qtype == dns.TypeA {
		rr, err := s.answer(st, relative, q.Name)
		switch {
		case err == nil:
			msg.Answer = append(msg.Answer, rr)
		case errors.Is(err, store.ErrNotFound):
			msg.Rcode = dns.RcodeNameError
		default:
			logger := log.WithComponent("dns")
			logger.Warn().Err(err).Str("query", q.Name).Msg("Lookup failed")
			msg.Rcode = dns.RcodeServerFailure
		}
	}

	if err := w.WriteMsg(msg); err != nil {
		logger := log.WithComponent("dns")
		logger.Error().Err(err).Msg("Failed to write DNS response")
	}
}

// zoneFor matches a query name against the competition zones and
// returns the zone-relative labels.
func (s *Server) zoneFor(name string) (*store.Store, string) {
	for suffix, st := range s.zones {
		if strings.HasSuffix(name, "."+suffix) {
			return st, strings.TrimSuffix(name, "."+suffix)
		}
	}
	return nil, ""
}

func (s *Server) answer(st *store.Store, relative, query string) (dns.RR, error) {
	box, team, err := splitBoxName(relative)
	if err != nil {
		return nil, store.ErrNotFound
	}
	if st.Competition().TeamID(team) == 0 {
		return nil, store.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	ip, err := st.BoxIP(ctx, team, box)
	if err != nil {
		return nil, err
	}
	addr := net.ParseIP(ip)
	if addr == nil || addr.To4() == nil {
		return nil, fmt.Errorf("recorded address %q is not IPv4", ip)
	}

	return &dns.A{
		Hdr: dns.RR_Header{
			Name:   query,
			Rrtype: dns.TypeA,
			Class:  dns.ClassINET,
			Ttl:    answerTTL,
		},
		A: addr.To4(),
	}, nil
}

// forwardQuery relays a non-overlay query to the upstream resolver.
func (s *Server) forwardQuery(w dns.ResponseWriter, r *dns.Msg) {
	logger := log.WithComponent("dns")
	client := &dns.Client{Net: "udp", Timeout: lookupTimeout}
	resp, _, err := client.Exchange(r, s.upstream)
	if err != nil {
		logger.Debug().Err(err).Str("upstream", s.upstream).Msg("Upstream query failed")
		msg := &dns.Msg{}
		msg.SetReply(r)
		msg.Rcode = dns.RcodeServerFailure
		resp = msg
	}
	if err := w.WriteMsg(resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write forwarded response")
	}
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
