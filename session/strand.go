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

package session

import "sync"

import "github.com/eapache/queue"

import "github.com/deroproject/wsrpc/globals"

// strand is the single serialization context of a session.
// tasks run one at a time in post order on a dedicated goroutine, so
// anything only touched from tasks needs no locking
type strand struct {
	sync.Mutex
	tasks   *queue.Queue
	wake    chan struct{}
	closed  bool
	running bool
	done    chan struct{}
}

func newStrand() *strand {
	return &strand{tasks: queue.New(), wake: make(chan struct{}, 1), done: make(chan struct{})}
}

// start the executing goroutine, only the first call has effect
func (st *strand) start() {
	st.Lock()
	defer st.Unlock()
	if st.running {
		return
	}
	st.running = true
	go st.run()
}

// post enqueues fn, it never blocks
// returns false once the strand has been closed
func (st *strand) post(fn func()) bool {
	st.Lock()
	if st.closed {
		st.Unlock()
		return false
	}
	st.tasks.Add(fn)
	st.Unlock()

	select {
	case st.wake <- struct{}{}:
	default:
	}
	return true
}

// close refuses further posts, tasks already queued still run
func (st *strand) close() {
	st.Lock()
	st.closed = true
	st.Unlock()

	select {
	case st.wake <- struct{}{}:
	default:
	}
}

func (st *strand) run() {
	for {
		st.Lock()
		for st.tasks.Length() == 0 {
			if st.closed {
				st.Unlock()
				close(st.done)
				return
			}
			st.Unlock()
			<-st.wake
			st.Lock()
		}
		fn := st.tasks.Remove().(func())
		st.Unlock()

		st.exec(fn)
	}
}

func (st *strand) exec(fn func()) {
	defer globals.Recover(1)
	fn()
}
