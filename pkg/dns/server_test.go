package dns

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/miekg/dns"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carvesec/carve/pkg/config"
	"github.com/carvesec/carve/pkg/log"
	"github.com/carvesec/carve/pkg/store"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	os.Exit(m.Run())
}

func TestSplitBoxName(t *testing.T) {
	box, team, err := splitBoxName("web.team1")
	require.NoError(t, err)
	assert.Equal(t, "web", box)
	assert.Equal(t, "team1", team)

	for _, bad := range []string{"", "web", "web.team1.extra", ".team1", "web."} {
		_, _, err := splitBoxName(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func newDNSStore(t *testing.T) *store.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	comp := &config.Competition{
		Name:  "compA",
		Teams: []config.Team{{Name: "team1"}, {Name: "team2"}},
		Boxes: []config.Box{{Name: "web"}},
	}
	return store.NewWithClient(comp, rdb)
}

func startTestServer(t *testing.T, st *store.Store) *Server {
	t.Helper()
	srv := NewServer([]*store.Store{st}, &Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func query(t *testing.T, addr, name string) *dns.Msg {
	t.Helper()
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeA)
	client := &dns.Client{Timeout: 2 * time.Second}
	resp, _, err := client.Exchange(msg, addr)
	require.NoError(t, err)
	return resp
}

func TestServerAnswersOverlayNames(t *testing.T) {
	st := newDNSStore(t)
	require.NoError(t, st.RecordBoxIP(context.Background(), "team1", "web", "10.0.1.10"))
	srv := startTestServer(t, st)

	resp := query(t, srv.Addr(), "web.team1.compA.hack")
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	assert.True(t, resp.Authoritative)
	require.Len(t, resp.Answer, 1)
	a, ok := resp.Answer[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "10.0.1.10", a.A.String())
}

func TestServerNXDomainForUnknownBox(t *testing.T) {
	st := newDNSStore(t)
	srv := startTestServer(t, st)

	// Known team, no recorded address.
	resp := query(t, srv.Addr(), "web.team2.compA.hack")
	assert.Equal(t, dns.RcodeNameError, resp.Rcode)

	// Unknown team inside the zone.
	resp = query(t, srv.Addr(), "web.ghosts.compA.hack")
	assert.Equal(t, dns.RcodeNameError, resp.Rcode)
}

func TestServerStartStop(t *testing.T) {
	st := newDNSStore(t)
	srv := startTestServer(t, st)

	assert.True(t, srv.IsRunning())
	assert.Error(t, srv.Start())
	require.NoError(t, srv.Stop())
	assert.False(t, srv.IsRunning())
}
