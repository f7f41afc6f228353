package preview

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentbench/agentbench/internal/common/logger"
)

// proxyEntry caches a reverse proxy together with the target address it
// was built for, so a dev server restarting on a new port gets a fresh
// proxy.
type proxyEntry struct {
	proxy  *httputil.ReverseProxy
	target string // "host:port"
}

// ProxyHandler reverse-proxies HTTP and WebSocket traffic to the dev
// server registered for a workspace.
type ProxyHandler struct {
	manager *Manager
	logger  *logger.Logger

	mu      sync.Mutex
	proxies map[string]*proxyEntry
}

// NewProxyHandler creates a preview proxy handler.
func NewProxyHandler(manager *Manager, log *logger.Logger) *ProxyHandler {
	return &ProxyHandler{
		manager: manager,
		logger:  log.WithFields(zap.String("component", "preview-proxy")),
		proxies: make(map[string]*proxyEntry),
	}
}

// RegisterRoutes mounts the preview endpoints on the gin router.
func (h *ProxyHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/preview/status", h.Status)
	rg.Any("/preview/:workspaceId/*path", h.Handle)
}

// Status handles GET /api/preview/status?workspaceId=... and returns the
// preview URL and port, or explicit nulls when no dev server is live.
func (h *ProxyHandler) Status(c *gin.Context) {
	workspaceID := c.Query("workspaceId")
	if workspaceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "workspaceId is required"})
		return
	}
	target, ok := h.manager.GetPreviewTarget(workspaceID)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"url": nil, "port": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": target.URL(), "port": target.Port})
}

// Handle handles all HTTP/WS requests to /api/preview/:workspaceId/*path
// and forwards them to the workspace's dev server.
func (h *ProxyHandler) Handle(c *gin.Context) {
	workspaceID := c.Param("workspaceId")
	if workspaceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "workspaceId is required"})
		return
	}

	target, ok := h.manager.GetPreviewTarget(workspaceID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no preview target for workspace"})
		return
	}
	proxy := h.resolveProxy(workspaceID, target)

	c.Request.URL.Path = rewritePath(c.Request.URL.Path, workspaceID)
	c.Request.URL.RawPath = ""

	// ReverseProxy panics with http.ErrAbortHandler when the client
	// disconnects mid-stream. Recover silently so Gin's recovery
	// middleware doesn't log a stack trace for a routine disconnect.
	defer func() {
		if r := recover(); r != nil {
			if r == http.ErrAbortHandler {
				h.logger.Debug("preview proxy: client disconnected",
					zap.String("workspace_id", workspaceID))
				return
			}
			panic(r)
		}
	}()

	proxy.ServeHTTP(c.Writer, c.Request)
}

// resolveProxy returns the cached proxy for the workspace, rebuilding it
// when the dev server moved to a different address.
func (h *ProxyHandler) resolveProxy(workspaceID string, target Target) *httputil.ReverseProxy {
	h.mu.Lock()
	defer h.mu.Unlock()

	addr := target.Addr()
	if entry, ok := h.proxies[workspaceID]; ok && entry.target == addr {
		return entry.proxy
	}
	proxy := h.createProxy(workspaceID, targetURL(target))
	h.proxies[workspaceID] = &proxyEntry{proxy: proxy, target: addr}
	return proxy
}

// createProxy builds a reverse proxy for the given target URL.
func (h *ProxyHandler) createProxy(workspaceID string, target *url.URL) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)

	// The director rewrites Host so origin-checking dev servers accept
	// the request, and preserves the headers WebSocket upgrades need.
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = target.Host
		if req.Header.Get("Upgrade") != "" {
			req.Header.Set("Connection", "Upgrade")
		}
	}

	proxy.ModifyResponse = func(resp *http.Response) error {
		if resp.StatusCode == http.StatusSwitchingProtocols {
			resp.Header.Set("Connection", "Upgrade")
		}
		return nil
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		h.logger.Error("preview proxy error",
			zap.String("workspace_id", workspaceID),
			zap.Error(err))
		// Drop the cached proxy so the next request re-resolves.
		h.InvalidateProxy(workspaceID)
		http.Error(w, "preview proxy error: dev server unreachable", http.StatusBadGateway)
	}

	return proxy
}

// InvalidateProxy removes a cached proxy, e.g. when the dev server stops.
func (h *ProxyHandler) InvalidateProxy(workspaceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.proxies, workspaceID)
}

// rewritePath strips the /api/preview/:workspaceId routing prefix so the
// dev server sees paths relative to its own root. An empty remainder
// forwards as "/".
func rewritePath(original, workspaceID string) string {
	prefix := "/api/preview/" + workspaceID
	path := strings.TrimPrefix(original, prefix)
	if path == "" {
		path = "/"
	}
	return path
}

// targetURL builds the proxy base URL, bracketing IPv6 host literals.
func targetURL(target Target) *url.URL {
	return &url.URL{Scheme: "http", Host: target.Addr()}
}
