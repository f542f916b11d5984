package api

import (
	"net/http"
	"runtime"
	"time"
)

type DiagnosticsInfo struct {
	HTTPAddr   string `json:"http_addr"`
	DataDir    string `json:"data_dir"`
	DBPath     string `json:"db_path"`
	WebDir     string `json:"web_dir"`
	Timezone   string `json:"timezone"`
	LLMBaseURL string `json:"llm_base_url"`
	LLMModel   string `json:"llm_model"`
}

type DiagnosticsResponse struct {
	Time          time.Time       `json:"time"`
	StartedAt     time.Time       `json:"started_at"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	GoVersion     string          `json:"go_version"`
	LLMConfigured bool            `json:"llm_configured"`
	Info          DiagnosticsInfo `json:"info"`
	EventBus      map[string]any  `json:"eventbus"`
	Sessions      map[string]any  `json:"sessions"`
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	now := time.Now().UTC()
	started := s.StartedAt
	if started.IsZero() {
		started = now
	}
	resp := DiagnosticsResponse{
		Time:          now,
		StartedAt:     started,
		UptimeSeconds: int64(now.Sub(started).Seconds()),
		GoVersion:     runtime.Version(),
		LLMConfigured: s.Info.LLMModel != "",
		Info:          s.Info,
		EventBus:      map[string]any{},
		Sessions:      map[string]any{},
	}
	if s.Bus != nil {
		resp.EventBus["subscribers"] = s.Bus.SubscriberCount()
	}
	if s.Registry != nil {
		if items, err := s.Registry.List(r.Context(), 1000); err == nil {
			running, awaiting := 0, 0
			for _, rec := range items {
				switch rec.Status {
				case "running":
					running++
				case "awaiting_reply":
					awaiting++
				}
			}
			resp.Sessions["running"] = running
			resp.Sessions["awaiting_reply"] = awaiting
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
