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

package main

import "os"
import "fmt"
import "time"
import "errors"
import "runtime"
import "os/signal"
import "syscall"

import "github.com/go-logr/logr"
import "github.com/docopt/docopt-go"
import "gopkg.in/natefinch/lumberjack.v2"

import "github.com/deroproject/wsrpc/rpc"
import "github.com/deroproject/wsrpc/config"
import "github.com/deroproject/wsrpc/server"
import "github.com/deroproject/wsrpc/globals"
import "github.com/deroproject/wsrpc/metrics"
import "github.com/deroproject/wsrpc/session"

var command_line string = `wsrpcd
WSRPC : http and websocket rpc daemon, cbor over binary frames, json-rpc 2.0 over text frames.

Usage:
  wsrpcd [--help] [--version] [--debug] [--listen=<127.0.0.1:20206>] [--kcp-listen=<0.0.0.0:20207>] [--log-file=<wsrpcd.log>] [--clog-level=1] [--flog-level=1]
  wsrpcd -h | --help
  wsrpcd --version

Options:
  -h --help     Show this screen.
  --version     Show version.
  --debug       Debug mode enabled, print more log messages
  --clog-level=1	Set console log level (0 to 127)
  --flog-level=1	Set file log level (0 to 127)
  --listen=<127.0.0.1:20206>	tcp listen address, port 0 disables tcp
  --kcp-listen=<0.0.0.0:20207>	also accept kcp (reliable udp) on this address
  --log-file=<wsrpcd.log>	log file, rotated at 100 MB
  `

var logger logr.Logger

func main() {
	var err error
	globals.Arguments, err = docopt.Parse(command_line, nil, true, config.Version.String(), false)
	if err != nil {
		fmt.Printf("Error while parsing options err: %s\n", err)
		return
	}

	exename, _ := os.Executable()
	logfile := exename + ".log"
	if s, ok := globals.Arguments["--log-file"].(string); ok && s != "" {
		logfile = s
	}
	globals.InitializeLog(os.Stdout, &lumberjack.Logger{
		Filename:   logfile,
		MaxSize:    100, // megabytes
		MaxBackups: 2,
	})

	logger = globals.Logger.WithName("wsrpcd")
	logger.Info("WSRPC daemon", "Version", config.Version.String())
	logger.Info("", "OS", runtime.GOOS, "ARCH", runtime.GOARCH, "GOMAXPROCS", runtime.GOMAXPROCS(0))
	logger.V(1).Info("", "Arguments", globals.Arguments)
	logger.V(1).Info("", "Settings", config.Settings)

	table := rpc.NewTable()
	register_handlers(table)

	mux := rpc.NewMux(table)
	defer mux.Close()
	notifier := rpc.NewServer(table, mux)

	srv := server.New(notifier, session.DefaultConfig())

	listen := fmt.Sprintf("127.0.0.1:%d", config.RPC_Default_Port)
	if s, ok := globals.Arguments["--listen"].(string); ok && s != "" {
		listen = s
	}
	started := 0
	if !disabled(listen) {
		if err = srv.Start(listen); err != nil {
			return
		}
		started++
	}
	if s, ok := globals.Arguments["--kcp-listen"].(string); ok && s != "" && !disabled(s) {
		if err = srv.Start("kcp://" + s); err != nil {
			srv.Stop()
			return
		}
		started++
	}
	if started == 0 {
		logger.Error(errors.New("nothing to listen on"), "exiting")
		return
	}

	go metrics.Dump_metrics_data_directly(logger, "wsrpcd")

	gracefulStop := make(chan os.Signal, 1)
	signal.Notify(gracefulStop, os.Interrupt, syscall.SIGTERM)
	sig := <-gracefulStop
	logger.Info("received signal", "signal", sig)

	logger.Info("Exit in Progress, Please wait")
	srv.Stop()
	globals.Cron.Stop()
	time.Sleep(100 * time.Millisecond) // let the log lines flush
}

// port 0 disables a listener
func disabled(addr string) bool {
	_, port, err := splitport(addr)
	return err == nil && port == 0
}
