package gateway

import (
	"net/http"
	"os"
	"path/filepath"
)

// fallbackIndex is served when the React build is missing
const fallbackIndex = `<!DOCTYPE html>
<html>
<head>
    <title>AI Agents</title>
</head>
<body>
    <div id="react-root">
        <h1>AI Agents API</h1>
        <p>React frontend not built. Please run 'pnpm build' in the frontend directory.</p>
        <p>API endpoints are available at:</p>
        <ul>
            <li><a href="/health">/health</a> - Health check</li>
            <li><a href="/agent">/agent</a> - Agent details</li>
            <li>/chat - Chat endpoint (POST)</li>
            <li>/chat/history - Chat history (GET)</li>
        </ul>
    </div>
</body>
</html>
`

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (s *Server) registerStatic(mux *http.ServeMux) {
	if s.staticDir != "" && dirExists(s.staticDir) {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.staticDir))))
	}

	assets := filepath.Join(s.staticDir, "react", "assets")
	if s.staticDir != "" && dirExists(assets) {
		mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(assets))))
	}

	mux.HandleFunc("GET /", s.handleSPA)
}

// handleSPA serves the React index for every unmatched GET
func (s *Server) handleSPA(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if s.staticDir != "" {
		index, err := os.ReadFile(filepath.Join(s.staticDir, "react", "index.html"))
		if err == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(index)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(fallbackIndex))
}
