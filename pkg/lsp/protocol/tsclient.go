package protocol

import (
	"context"
)

// Client sends server-initiated notifications to the editor.
type Client struct {
	notifier Notifier
}

func NewClient(n Notifier) *Client {
	return &Client{notifier: n}
}

func (c *Client) PublishDiagnostics(ctx context.Context, params *PublishDiagnosticsParams) error {
	params.Diagnostics = NonNilSlice(params.Diagnostics)
	return createNotify(ctx, c.notifier, "textDocument/publishDiagnostics", params)
}

func (c *Client) LogMessage(ctx context.Context, params *LogMessageParams) error {
	return createNotify(ctx, c.notifier, "window/logMessage", params)
}
