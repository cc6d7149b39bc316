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

package server

import "net"
import "sync"

import "go.uber.org/atomic"

import "github.com/deroproject/wsrpc/metrics"
import "github.com/deroproject/wsrpc/session"

var active_sessions atomic.Int64

var _ = metrics.Set.NewGauge(`server_sessions_active`, func() float64 {
	return float64(active_sessions.Load())
})

// Registry tracks running sessions, incoming connections from a single IP
// are limited to MaxPerIP (considering NAT), 0 is unlimited
type Registry struct {
	MaxPerIP int

	sessions sync.Map // id -> *session.Session

	sync.Mutex
	per_ip map[string]int
	count  int
}

var _ session.Registry = (*Registry)(nil)

func NewRegistry(max_per_ip int) *Registry {
	return &Registry{MaxPerIP: max_per_ip, per_ip: map[string]int{}}
}

func ip_of(s *session.Session) string {
	if addr, ok := s.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	if addr, ok := s.RemoteAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return s.RemoteAddress()
}

func (r *Registry) Register(s *session.Session) bool {
	ip := ip_of(s)

	r.Lock()
	defer r.Unlock()
	if r.MaxPerIP > 0 && r.per_ip[ip] >= r.MaxPerIP {
		logger.V(1).Info("IP address already has too many connections, exiting this connection", "ip", ip, "count", r.per_ip[ip])
		return false
	}
	r.per_ip[ip]++
	r.count++
	active_sessions.Inc()
	r.sessions.Store(s.ID(), s)
	return true
}

func (r *Registry) Deregister(s *session.Session) {
	if _, ok := r.sessions.LoadAndDelete(s.ID()); !ok {
		return
	}
	ip := ip_of(s)

	r.Lock()
	defer r.Unlock()
	if r.per_ip[ip]--; r.per_ip[ip] <= 0 {
		delete(r.per_ip, ip)
	}
	r.count--
	active_sessions.Dec()
}

func (r *Registry) Count() int {
	r.Lock()
	defer r.Unlock()
	return r.count
}

// CountIP reports sessions from ip
func (r *Registry) CountIP(ip string) int {
	r.Lock()
	defer r.Unlock()
	return r.per_ip[ip]
}

func (r *Registry) Find(id uint64) (*session.Session, bool) {
	if v, ok := r.sessions.Load(id); ok {
		return v.(*session.Session), true
	}
	return nil, false
}

// Range stops when fn returns false
func (r *Registry) Range(fn func(s *session.Session) bool) {
	r.sessions.Range(func(k, v interface{}) bool {
		return fn(v.(*session.Session))
	})
}

// Broadcast queues a frame on every upgraded session, returns how many accepted it
func (r *Registry) Broadcast(frame_type int, data []byte) (count int) {
	r.Range(func(s *session.Session) bool {
		if s.Upgraded() && s.SendFrame(frame_type, data) {
			count++
		}
		return true
	})
	return
}

// StopAll stops every session and waits for them to finish
func (r *Registry) StopAll() (count int) {
	var sessions []*session.Session
	r.Range(func(s *session.Session) bool {
		sessions = append(sessions, s)
		return true
	})
	for _, s := range sessions {
		s.Stop()
	}
	for _, s := range sessions {
		s.Wait()
		count++
	}
	return
}
