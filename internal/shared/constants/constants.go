package constants

import "time"

const (
	// ==================== Wire Configuration ====================

	// HTTPVersion is the protocol written on every request line.
	HTTPVersion = "HTTP/1.1"

	// DefaultHTTPPort is elided from the Host header.
	DefaultHTTPPort = "80"

	// DefaultContentType is sent with request bodies that do not name a type.
	DefaultContentType = "application/x-www-form-urlencoded"

	// DefaultAcceptEncoding is sent unless the caller asks for something else.
	DefaultAcceptEncoding = "identity"

	// DefaultUserAgent is the User-Agent a fresh client config starts with.
	DefaultUserAgent = "keepalive"

	// MaxLineLength bounds status, header, chunk-size and trailer lines.
	MaxLineLength = 64 * 1024

	// ==================== Buffer Sizes ====================

	// StreamBlockSize is the read size used when copying a stream body to the socket.
	StreamBlockSize = 8192

	// ReadLineBlockSize is how much ReadLine pulls from the body per attempt.
	ReadLineBlockSize = 8096

	// ConnReadBufferSize is the bufio.Reader size attached to each pooled connection.
	ConnReadBufferSize = 32 * 1024

	// MaxDrainBytes is how much unread body Close will consume to keep a connection reusable.
	// Anything larger gets the connection discarded instead.
	MaxDrainBytes = 256 * 1024

	// ==================== Timeouts ====================

	// DefaultDialTimeout is used when no dial timeout is configured.
	DefaultDialTimeout = 30 * time.Second

	// DefaultCheckWait is how long `keepalive check` waits before the dropped-connection fetch.
	DefaultCheckWait = 20 * time.Second
)

// Pool event labels shared by logs and metrics.
const (
	EventOpened     = "opened"
	EventReused     = "reused"
	EventReuseFail  = "reuse_failed"
	EventDiscarded  = "discarded"
	EventBrokenPipe = "broken_pipe_recovered"
)
