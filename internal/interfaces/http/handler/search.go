package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appidentity "github.com/etribe/portal/internal/application/identity"
	appsearch "github.com/etribe/portal/internal/application/search"
	"github.com/etribe/portal/internal/domain/search"
	"github.com/etribe/portal/internal/interfaces/http/dto"
)

// SSEMessage is one server-sent event
type SSEMessage struct {
	Event string
	Data  string
	ID    string
}

// SearchResponse is the body of a one-shot search
type SearchResponse struct {
	Query   string          `json:"query"`
	Scope   search.Scope    `json:"scope"`
	Results []search.Result `json:"results"`
}

// LiveInputRequest feeds a keystroke into a live search stream
type LiveInputRequest struct {
	Query string `json:"query"`
}

// liveStream is one connected search box. Every input goes through its
// debouncer; only the latest query's results reach the client.
type liveStream struct {
	ID        string
	Scope     search.Scope
	ctx       context.Context
	events    chan SSEMessage
	done      chan struct{}
	debouncer *appsearch.Debouncer
}

func (s *liveStream) send(msg SSEMessage) bool {
	select {
	case <-s.done:
		return false
	case s.events <- msg:
		return true
	default:
		return false
	}
}

// SearchHandler serves global search, both one-shot and as a debounced
// live stream over SSE.
type SearchHandler struct {
	BaseHandler
	aggregator  *appsearch.Aggregator
	authService *appidentity.AuthService
	logger      *zap.Logger
	debounce    time.Duration
	heartbeat   time.Duration
	maxStreams  int

	streams sync.Map // map[string]*liveStream
	count   atomic.Int32
	ctx     context.Context
	cancel  context.CancelFunc
}

// SearchOption configures the search handler
type SearchOption func(*SearchHandler)

// WithSearchLogger sets the logger
func WithSearchLogger(logger *zap.Logger) SearchOption {
	return func(h *SearchHandler) { h.logger = logger }
}

// WithSearchDebounce sets the live search idle delay
func WithSearchDebounce(d time.Duration) SearchOption {
	return func(h *SearchHandler) { h.debounce = d }
}

// WithSearchHeartbeat sets the SSE heartbeat interval
func WithSearchHeartbeat(d time.Duration) SearchOption {
	return func(h *SearchHandler) { h.heartbeat = d }
}

// WithMaxLiveStreams caps concurrent live search streams
func WithMaxLiveStreams(n int) SearchOption {
	return func(h *SearchHandler) { h.maxStreams = n }
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(aggregator *appsearch.Aggregator, authService *appidentity.AuthService, opts ...SearchOption) *SearchHandler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &SearchHandler{
		aggregator:  aggregator,
		authService: authService,
		logger:      zap.NewNop(),
		debounce:    appsearch.DefaultDebounce,
		heartbeat:   30 * time.Second,
		maxStreams:  100,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers search routes
func (h *SearchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/search", h.Search)
	rg.GET("/search/live", h.Stream)
	rg.POST("/search/live/:id", h.Input)
}

// scope uses the explicit scope parameter, else the signed-in role.
func (h *SearchHandler) scope(c *gin.Context) search.Scope {
	if s := c.Query("scope"); s != "" {
		return search.ParseScope(s)
	}
	return search.ScopeFor(h.authService.Current(c.Request.Context()).Role)
}

// Search godoc
// @Summary      Search members, events, circulars and feedback
// @Tags         search
// @Produce      json
// @Param        q     query string false "Query, at least two characters"
// @Param        scope query string false "admin or user; defaults to the session role"
// @Success      200 {object} dto.Response{data=SearchResponse}
// @Router       /search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	scope := h.scope(c)
	results, err := h.aggregator.Search(c.Request.Context(), query, scope)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, SearchResponse{Query: query, Scope: scope, Results: results})
}

// Stream opens a live search stream. The first event, "connected", carries
// the stream id that Input posts to. Each surviving query produces one
// "results" event.
func (h *SearchHandler) Stream(c *gin.Context) {
	if h.maxStreams > 0 && int(h.count.Load()) >= h.maxStreams {
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
			"ERR_MAX_CONNECTIONS", "Maximum number of live search streams reached", getRequestID(c)))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	// the server write timeout would otherwise cut the stream
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	const bufferSize = 16
	stream := &liveStream{
		ID:     uuid.NewString(),
		Scope:  h.scope(c),
		ctx:    c.Request.Context(),
		events: make(chan SSEMessage, bufferSize),
		done:   make(chan struct{}),
	}
	stream.debouncer = appsearch.NewDebouncer(h.debounce,
		func(ctx context.Context, q string) ([]search.Result, error) {
			return h.aggregator.Search(ctx, q, stream.Scope)
		},
		func(out appsearch.Outcome) { h.deliver(stream, out) },
	)

	h.streams.Store(stream.ID, stream)
	h.count.Add(1)
	defer func() {
		stream.debouncer.Stop()
		close(stream.done)
		h.streams.Delete(stream.ID)
		h.count.Add(-1)
	}()

	log := h.logger.With(zap.String("stream_id", stream.ID), zap.String("scope", string(stream.Scope)))
	log.Info("Live search stream opened")

	h.sendEvent(c.Writer, SSEMessage{
		Event: "connected",
		Data:  marshalEvent(gin.H{"stream_id": stream.ID, "scope": stream.Scope}),
	})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-stream.ctx.Done():
			log.Info("Live search stream closed")
			return
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.sendEvent(c.Writer, SSEMessage{
				Event: "heartbeat",
				Data:  marshalEvent(gin.H{"timestamp": time.Now().Unix()}),
			})
			c.Writer.Flush()
		case msg := <-stream.events:
			h.sendEvent(c.Writer, msg)
			c.Writer.Flush()
		}
	}
}

// Input feeds a query into a live stream and returns its sequence number.
func (h *SearchHandler) Input(c *gin.Context) {
	value, ok := h.streams.Load(c.Param("id"))
	if !ok {
		h.NotFound(c, "Live search stream not found")
		return
	}
	var req LiveInputRequest
	if !h.bindJSON(c, &req) {
		return
	}
	stream := value.(*liveStream)
	seq := stream.debouncer.Input(stream.ctx, req.Query)
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(gin.H{"seq": seq}))
}

func (h *SearchHandler) deliver(stream *liveStream, out appsearch.Outcome) {
	msg := SSEMessage{ID: fmt.Sprint(out.Seq)}
	if out.Err != nil {
		msg.Event = "error"
		msg.Data = marshalEvent(gin.H{"seq": out.Seq, "message": out.Err.Error()})
	} else {
		data, err := json.Marshal(out)
		if err != nil {
			h.logger.Error("Failed to marshal search outcome", zap.Error(err))
			return
		}
		msg.Event = "results"
		msg.Data = string(data)
	}
	if !stream.send(msg) {
		h.logger.Warn("Live search stream not accepting results, dropping",
			zap.String("stream_id", stream.ID), zap.Uint64("seq", out.Seq))
	}
}

// marshalEvent encodes an SSE data payload; v is always a map of strings
// and numbers.
func marshalEvent(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func (h *SearchHandler) sendEvent(w io.Writer, msg SSEMessage) {
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}

// StreamCount returns the number of open live streams
func (h *SearchHandler) StreamCount() int {
	return int(h.count.Load())
}

// Stop disconnects every live stream
func (h *SearchHandler) Stop() {
	h.cancel()
}
