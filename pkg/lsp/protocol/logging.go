package protocol

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/walteh/boolsp/pkg/debug"
)

// MessageType is the severity of a window/logMessage notification.
type MessageType int

const (
	Error   MessageType = 1
	Warning MessageType = 2
	Info    MessageType = 3
	Log     MessageType = 4
	Debug   MessageType = 5
)

func (mt MessageType) String() string {
	switch mt {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		return "log"
	}
}

// LogMessageParams carries one log event to the editor. The fields past
// Message are extensions editors ignore when they do not know them.
type LogMessageParams struct {
	Type         MessageType    `json:"type"`
	Message      string         `json:"message"`
	Extra        map[string]any `json:"extra,omitempty"`
	Time         string         `json:"time,omitempty"`
	Source       string         `json:"source,omitempty"`
	IsDependency bool           `json:"is_dependency,omitempty"`
}

var myLoggerId = xid.New().String()

// ApplyServerInstanceToZerolog replaces the logger in ctx with one that
// forwards every event to the editor through client.
func ApplyServerInstanceToZerolog(ctx context.Context, client *Client) context.Context {
	writer := &logWriter{client: client, ctx: ctx}

	level := zerolog.Ctx(ctx).GetLevel()

	return zerolog.New(writer).With().
		Str("id", myLoggerId).
		Str("lsp_role", "server").
		Logger().
		Level(level).
		Hook(debug.TimeHook{}).
		Hook(debug.CallerHook{}).
		WithContext(ctx)
}

func ApplyRequestToZerolog(ctx context.Context, req *jrpc2.Request) context.Context {
	return zerolog.Ctx(ctx).With().Str("rpc_method", req.Method()).Str("rpc_id", req.ID()).Logger().WithContext(ctx)
}

type logWriter struct {
	client *Client
	mu     sync.Mutex
	ctx    context.Context
}

// Write forwards one JSON encoded event. Delivery failures are dropped
// since there is nowhere left to report them.
func (w *logWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var logEntry map[string]any
	if err := json.Unmarshal(p, &logEntry); err != nil {
		return len(p), nil
	}

	level := ParseMessageTypeFromZerolog(extractField(logEntry, "level", "info"))
	msg := extractField(logEntry, "message", "")
	id := extractField(logEntry, "id", "")
	time := extractField(logEntry, "time", "")
	source := extractField(logEntry, "caller", "")

	if w.client != nil {
		_ = w.client.LogMessage(w.ctx, &LogMessageParams{
			Type:         level,
			Message:      msg,
			Extra:        logEntry,
			Time:         time,
			Source:       source,
			IsDependency: id != myLoggerId,
		})
	}

	return len(p), nil
}

func extractField(entry map[string]any, key, defaultValue string) string {
	if v, ok := entry[key].(string); ok {
		delete(entry, key)
		return v
	}
	return defaultValue
}

// ParseMessageTypeFromZerolog converts zerolog level to LSP MessageType
func ParseMessageTypeFromZerolog(level string) MessageType {
	switch level {
	case "error", "fatal", "panic":
		return Error
	case "warn":
		return Warning
	case "info":
		return Info
	case "debug", "trace":
		return Debug
	default:
		return Log
	}
}

// RPCLogger records every request and response at debug level. Logger,
// when set, is used instead of the logger in the request context, which
// keeps RPC traces off a connection that is itself being traced.
type RPCLogger struct {
	Logger *zerolog.Logger
}

var _ jrpc2.RPCLogger = (*RPCLogger)(nil)

func (me *RPCLogger) logger(ctx context.Context) *zerolog.Logger {
	if me.Logger != nil {
		return me.Logger
	}
	return zerolog.Ctx(ctx)
}

func (me *RPCLogger) LogRequest(ctx context.Context, req *jrpc2.Request) {
	me.logger(ctx).Debug().Str("rpc_params", req.ParamString()).Str("rpc_id", req.ID()).Str("rpc_method", req.Method()).Msg("client request")
}

func (me *RPCLogger) LogResponse(ctx context.Context, res *jrpc2.Response) {
	me.logger(ctx).Debug().Str("rpc_result", res.ResultString()).Str("rpc_id", res.ID()).Msg("server response")
}
