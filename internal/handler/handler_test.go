package handler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	metricskit "github.com/soulteary/metrics-kit"

	"github.com/soulteary/wpadproxy/internal/metrics"
	"github.com/soulteary/wpadproxy/internal/resolver"
)

type fakeResolver struct {
	directive resolver.Directive
}

func (f *fakeResolver) Resolve(ctx context.Context, host string) (resolver.DirectiveList, error) {
	return resolver.DirectiveList{f.directive}, nil
}

func TestHandler_DirectForward(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hello" {
			t.Errorf("upstream saw path %q, want /hello", r.URL.Path)
		}
		w.Write([]byte("hello from upstream"))
	}))
	defer upstream.Close()

	addr := upstream.Listener.Addr().String()

	h := New(&fakeResolver{directive: resolver.Directive{Kind: resolver.Direct}}, nil)

	clientSide, serverSide := net.Pipe()
	done := make(chan struct{})
	go func() {
		h.Handle(context.Background(), serverSide)
		close(done)
	}()

	reqLine := fmt.Sprintf("GET http://%s/hello HTTP/1.1\r\nHost: %s\r\n\r\n", addr, addr)
	go clientSide.Write([]byte(reqLine))

	resp, err := http.ReadResponse(bufio.NewReader(clientSide), nil)
	if err != nil {
		t.Fatalf("ReadResponse() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "hello from upstream" {
		t.Errorf("body = %q, want %q", body, "hello from upstream")
	}

	clientSide.Close()
	<-done
}

func TestHandler_RecordsConnectionAndDirectiveMetrics(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	addr := upstream.Listener.Addr().String()
	m := metrics.New(metricskit.NewRegistry("handler_test"))

	h := New(&fakeResolver{directive: resolver.Directive{Kind: resolver.Direct}}, m)

	clientSide, serverSide := net.Pipe()
	done := make(chan struct{})
	go func() {
		h.Handle(context.Background(), serverSide)
		close(done)
	}()

	reqLine := fmt.Sprintf("GET http://%s/hello HTTP/1.1\r\nHost: %s\r\n\r\n", addr, addr)
	go clientSide.Write([]byte(reqLine))

	resp, err := http.ReadResponse(bufio.NewReader(clientSide), nil)
	if err != nil {
		t.Fatalf("ReadResponse() error = %v", err)
	}
	io.ReadAll(resp.Body)

	clientSide.Close()
	<-done

	if got := promtestutil.ToFloat64(m.ConnectionsTotal.WithLabelValues("GET")); got != 1 {
		t.Errorf("ConnectionsTotal{GET} = %v, want 1", got)
	}
	if got := promtestutil.ToFloat64(m.DirectiveResolution.WithLabelValues("direct")); got != 1 {
		t.Errorf("DirectiveResolution{direct} = %v, want 1", got)
	}
}

func TestHandler_MalformedRequestReturns400(t *testing.T) {
	h := New(&fakeResolver{directive: resolver.Directive{Kind: resolver.Direct}}, nil)

	clientSide, serverSide := net.Pipe()
	done := make(chan struct{})
	go func() {
		h.Handle(context.Background(), serverSide)
		close(done)
	}()

	go clientSide.Write([]byte("not a valid request line at all\r\n\r\n"))

	buf := make([]byte, 64)
	n, err := clientSide.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	got := string(buf[:n])
	if got[:15] != "HTTP/1.1 400 Ba" {
		t.Errorf("response = %q, want a 400 status line", got)
	}

	clientSide.Close()
	<-done
}

func TestHandler_ConnectDirectTunnels(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		conn.Write([]byte("world"))
	}()

	h := New(&fakeResolver{directive: resolver.Directive{Kind: resolver.Direct}}, nil)

	clientSide, serverSide := net.Pipe()
	done := make(chan struct{})
	go func() {
		h.Handle(context.Background(), serverSide)
		close(done)
	}()

	addr := ln.Addr().String()
	reqLine := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", addr, addr)
	go clientSide.Write([]byte(reqLine))

	want := "HTTP/1.1 200 OK\r\n\r\n"
	got := make([]byte, len(want))
	if _, err := io.ReadFull(clientSide, got); err != nil {
		t.Fatalf("reading CONNECT reply: %v", err)
	}
	if string(got) != want {
		t.Fatalf("CONNECT reply = %q, want %q", got, want)
	}

	if _, err := clientSide.Write([]byte("hello")); err != nil {
		t.Fatalf("writing tunnel bytes: %v", err)
	}
	reply := make([]byte, 5)
	if _, err := io.ReadFull(clientSide, reply); err != nil {
		t.Fatalf("reading tunnel reply: %v", err)
	}
	if string(reply) != "world" {
		t.Errorf("tunnel reply = %q, want %q", reply, "world")
	}

	clientSide.Close()
	<-done
}
