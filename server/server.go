// Copyright 2017-2021 DERO Project. All rights reserved.
// Use of this source code in any form is governed by RESEARCH license.
// license can be found in the LICENSE file.
// GPG: 0F39 E425 8C65 3947 702A  8234 08B2 0360 A03A 9DE8
//
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY
// EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL
// THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO,
// PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT,
// STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF
// THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

// Package server accepts tcp or kcp connections and runs a session for each
package server

import "net"
import "sync"
import "time"
import "errors"
import "strings"

import "github.com/go-logr/logr"
import "github.com/xtaci/kcp-go/v5"
import "github.com/robfig/cron/v3"

import "github.com/deroproject/wsrpc/config"
import "github.com/deroproject/wsrpc/globals"
import "github.com/deroproject/wsrpc/session"

var logger logr.Logger = logr.Discard()

var ErrStopped = errors.New("server stopped")

// Server owns listeners and the registry of their sessions
type Server struct {
	sync.Mutex
	Registry *Registry

	notifier  session.Notifier
	cfg       session.Config
	listeners []net.Listener
	stats     cron.EntryID
	exit      chan struct{}
	stopped   bool
	wg        sync.WaitGroup
}

// New builds a server, notifier receives every session's events
func New(notifier session.Notifier, cfg session.Config) *Server {
	logger = globals.Logger.WithName("server")
	return &Server{
		Registry: NewRegistry(config.Settings.MAX_PER_IP),
		notifier: notifier,
		cfg:      cfg,
		exit:     make(chan struct{}),
	}
}

// Start listens on addr, "kcp://host:port" listens for kcp over udp,
// anything else is tcp. may be called once per address
func (srv *Server) Start(addr string) (err error) {
	var l net.Listener
	if strings.HasPrefix(addr, "kcp://") {
		l, err = kcp.ListenWithOptions(strings.TrimPrefix(addr, "kcp://"), nil, 0, 0)
	} else {
		l, err = net.Listen("tcp", addr)
	}
	if err != nil {
		logger.Error(err, "Could not listen", "address", addr)
		return err
	}

	srv.Lock()
	defer srv.Unlock()
	if srv.stopped {
		l.Close()
		return ErrStopped
	}
	srv.listeners = append(srv.listeners, l)
	if len(srv.listeners) == 1 {
		srv.stats, _ = globals.Cron.AddFunc("@every 1m", srv.print_stats)
		globals.Cron.Start()
	}

	logger.Info("listening", "address", l.Addr().String())
	srv.wg.Add(1)
	go srv.accept_loop(l)
	return nil
}

// Addr is the first listening address, nil before Start
func (srv *Server) Addr() net.Addr {
	srv.Lock()
	defer srv.Unlock()
	if len(srv.listeners) == 0 {
		return nil
	}
	return srv.listeners[0].Addr()
}

func (srv *Server) Addrs() (addrs []net.Addr) {
	srv.Lock()
	defer srv.Unlock()
	for _, l := range srv.listeners {
		addrs = append(addrs, l.Addr())
	}
	return
}

func (srv *Server) accept_loop(l net.Listener) {
	defer srv.wg.Done()
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-srv.exit:
				return
			default:
			}
			logger.Error(err, "Err while accepting incoming connection")
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if udp, ok := conn.(*kcp.UDPSession); ok {
			udp.SetStreamMode(true)
			udp.SetWriteDelay(false)
			udp.SetNoDelay(1, 10, 2, 1)
			udp.SetWindowSize(1024, 1024)
		}

		srv.wg.Add(1)
		go srv.process_connection(conn)
	}
}

func (srv *Server) process_connection(conn net.Conn) {
	defer srv.wg.Done()
	defer globals.Recover(2)

	s := session.New(conn, srv.cfg, srv.notifier, srv.Registry)
	if !s.Start() {
		logger.V(2).Info("session did not start", "remote", conn.RemoteAddr().String(), "err", s.LastError())
		s.Stop()
		s.Wait()
	}
}

func (srv *Server) print_stats() {
	logger.V(1).Info("sessions", "active", srv.Registry.Count(), "uptime", time.Since(globals.StartTime).Round(time.Second).String())
}

// Stop closes every listener, then stops all sessions and waits for them
func (srv *Server) Stop() {
	srv.Lock()
	if srv.stopped {
		srv.Unlock()
		return
	}
	srv.stopped = true
	close(srv.exit)
	for _, l := range srv.listeners {
		l.Close()
	}
	if srv.stats != 0 {
		globals.Cron.Remove(srv.stats)
	}
	srv.Unlock()

	srv.wg.Wait()
	count := srv.Registry.StopAll()
	logger.Info("server stopped", "sessions", count)
}
