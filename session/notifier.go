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

// Notifier receives session events. All calls are made from the session's
// strand, so a notifier must not block for long. Start waits for
// NotifyAccept to return, calling Wait from inside it deadlocks.
//
// A notifier that keeps a message after NotifyRecv returns must call
// Retain on it; the session then reads the next message into a fresh one.
type Notifier interface {
	NotifyAccept(s *Session)
	NotifyRecv(s *Session, msg *Message)
	NotifySend(s *Session, msg *Message, err error)
	NotifyClose(s *Session, err error)
}

// UpgradeNotifier is optionally implemented by a Notifier which wants to
// know the outcome of each websocket handshake.
type UpgradeNotifier interface {
	NotifyUpgrade(s *Session, err error)
}

// Registry tracks live sessions, a false return from Register aborts startup.
type Registry interface {
	Register(s *Session) bool
	Deregister(s *Session)
}

// NotifierFuncs adapts plain functions to Notifier, nil fields are skipped
type NotifierFuncs struct {
	OnAccept  func(s *Session)
	OnRecv    func(s *Session, msg *Message)
	OnSend    func(s *Session, msg *Message, err error)
	OnClose   func(s *Session, err error)
	OnUpgrade func(s *Session, err error)
}

func (n NotifierFuncs) NotifyAccept(s *Session) {
	if n.OnAccept != nil {
		n.OnAccept(s)
	}
}

func (n NotifierFuncs) NotifyRecv(s *Session, msg *Message) {
	if n.OnRecv != nil {
		n.OnRecv(s, msg)
	}
}

func (n NotifierFuncs) NotifySend(s *Session, msg *Message, err error) {
	if n.OnSend != nil {
		n.OnSend(s, msg, err)
	}
}

func (n NotifierFuncs) NotifyClose(s *Session, err error) {
	if n.OnClose != nil {
		n.OnClose(s, err)
	}
}

func (n NotifierFuncs) NotifyUpgrade(s *Session, err error) {
	if n.OnUpgrade != nil {
		n.OnUpgrade(s, err)
	}
}

type nopRegistry struct{}

func (nopRegistry) Register(*Session) bool { return true }
func (nopRegistry) Deregister(*Session)    {}
