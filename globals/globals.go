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

package globals

import "io"
import "fmt"
import "time"
import "runtime/debug"

import "go.uber.org/zap"
import "go.uber.org/zap/zapcore"
import "github.com/go-logr/logr"
import "github.com/go-logr/zapr"
import "github.com/robfig/cron/v3"

// all the the global variables used by the program are stored here

var Subsystem_Active uint32 // atomic counter to show how many subsystems are active
var StartTime = time.Now()

// global logger all components will use it with context
var Logger logr.Logger = logr.Discard() // default discard all logs

// periodic jobs, started by the daemon
var Cron = cron.New(cron.WithChain(
	cron.Recover(cronlogger{}),
))

// all program arguments are available here
var Arguments = map[string]interface{}{}

// cron keeps its logger for its lifetime, so resolve the global logger on every call
type cronlogger struct{}

func (cronlogger) Info(msg string, keysAndValues ...interface{}) {
	Logger.WithName("cron").V(2).Info(msg, keysAndValues...)
}
func (cronlogger) Error(err error, msg string, keysAndValues ...interface{}) {
	Logger.WithName("cron").Error(err, msg, keysAndValues...)
}

// these 2 global variables control all log levels
var Log_Level_Console = zap.NewAtomicLevelAt(zapcore.Level(0)) // default info level
var Log_Level_File = zap.NewAtomicLevelAt(zapcore.Level(-1))   // default debug level

// remove caller information from console
type removeCallerCore struct {
	zapcore.Core
}

func (c *removeCallerCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Core.Check(entry, nil) == nil {
		return ce
	}
	return ce.AddCore(entry, c)
}
func (c *removeCallerCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	entry.Caller = zapcore.EntryCaller{}
	return c.Core.Write(entry, fields)
}
func (c *removeCallerCore) With(fields []zap.Field) zapcore.Core {
	return &removeCallerCore{c.Core.With(fields)}
}

// parse a level argument, valid range is 0 to 127
func parse_level(arg string, def zap.AtomicLevel) zap.AtomicLevel {
	if Arguments[arg] == nil {
		return def
	}
	s, ok := Arguments[arg].(string)
	if !ok {
		return def
	}
	var log_level int
	fmt.Sscan(s, &log_level)
	if log_level < 0 {
		log_level = 0
	}
	if log_level > 127 {
		log_level = 127
	}
	return zap.NewAtomicLevelAt(zapcore.Level(0 - log_level))
}

func InitializeLog(console, logfile io.Writer) {

	if Arguments["--debug"] != nil && Arguments["--debug"].(bool) == true { // setup debug mode if requested
		Log_Level_Console = zap.NewAtomicLevelAt(zapcore.Level(-1))
	}

	Log_Level_Console = parse_level("--clog-level", Log_Level_Console)
	Log_Level_File = parse_level("--flog-level", Log_Level_File)

	zf := zap.NewDevelopmentEncoderConfig()
	zc := zap.NewDevelopmentEncoderConfig()
	zc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zc.EncodeTime = zapcore.TimeEncoderOfLayout("02/01 15:04:05")

	file_encoder := zapcore.NewJSONEncoder(zf)
	console_encoder := zapcore.NewConsoleEncoder(zc)

	core_console := zapcore.NewCore(console_encoder, zapcore.AddSync(console), Log_Level_Console)
	removecore := &removeCallerCore{core_console}
	core := zapcore.NewTee(
		removecore,
		zapcore.NewCore(file_encoder, zapcore.AddSync(logfile), Log_Level_File),
	)

	zcore := zap.New(core, zap.AddCaller()) // add caller info to every record which is then trimmed from console

	Logger = zapr.NewLogger(zcore) // sets up global logger

	// remember -1 is debug, 0 is info
}

// used to recover in case of panics
func Recover(level int) (err error) {
	if r := recover(); r != nil {
		err = fmt.Errorf("Recovered r:%+v stack %s", r, string(debug.Stack()))
		Logger.V(level).Error(nil, "Recovered ", "error", r, "stack", string(debug.Stack()))
	}
	return
}

// gets a stack trace of all
func StackTrace(all bool) string {
	return string(debug.Stack())
}
