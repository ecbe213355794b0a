package domain

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// startTestServer serves a tiny zone on a loopback UDP port
func startTestServer(t *testing.T) string {
	t.Helper()

	records := map[string][]string{
		"example.com.":             {"example.com. 300 IN A 192.0.2.1", "example.com. 300 IN TXT \"v=spf1 -all\""},
		"10.2.0.192.in-addr.arpa.": {"10.2.0.192.in-addr.arpa. 300 IN PTR mx.example.com."},
		"_dmarc.example.com.":      {"_dmarc.example.com. 300 IN TXT \"v=DMARC1; p=reject\""},
	}

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		lines, ok := records[q.Name]
		if !ok {
			m.Rcode = dns.RcodeNameError
		}
		for _, line := range lines {
			rr, err := dns.NewRR(line)
			if err == nil && rr.Header().Rrtype == q.Qtype {
				m.Answer = append(m.Answer, rr)
			}
		}
		_ = w.WriteMsg(m)
	})

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() {
		_ = server.ActivateAndServe()
	}()
	<-started
	t.Cleanup(func() { _ = server.Shutdown() })

	return pc.LocalAddr().String()
}

func TestDNSResolver(t *testing.T) {
	addr := startTestServer(t)
	r := NewDNSResolver([]string{addr}, time.Second, 2, zap.NewNop(), nil)
	ctx := context.Background()

	addrs, err := r.LookupHost(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1"}, addrs)

	names, err := r.LookupAddr(ctx, "192.0.2.10")
	require.NoError(t, err)
	assert.Equal(t, []string{"mx.example.com"}, names)

	txt, err := r.LookupTXT(ctx, "_dmarc.example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"v=DMARC1; p=reject"}, txt)

	_, err = r.LookupHost(ctx, "missing.example.com")
	assert.Error(t, err)

	assert.Equal(t, "mx.example.com", FromIP(ctx, r, "192.0.2.10").Name())
	assert.True(t, FromIP(ctx, r, "192.0.2.11").IsUnknown())

	ip, err := FromString("example.com").IPAddress(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", ip)
}

func TestDNSResolverHonoursCancellation(t *testing.T) {
	addr := startTestServer(t)
	r := NewDNSResolver([]string{addr}, time.Second, 1, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.LookupHost(ctx, "example.com")
	assert.Error(t, err)
	assert.True(t, FromIP(ctx, r, "192.0.2.10").IsUnknown())
}

func TestDNSResolverFailsOverAfterTimeout(t *testing.T) {
	// A socket that never answers stands in for an unreachable server
	silent, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = silent.Close() })

	addr := startTestServer(t)
	r := NewDNSResolver([]string{silent.LocalAddr().String(), addr}, 200*time.Millisecond, 1, zap.NewNop(), nil)

	addrs, err := r.LookupHost(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1"}, addrs)
}
