package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/yaya56vv/cortex/internal/kernel"
	"github.com/yaya56vv/cortex/internal/toolclient"
	"github.com/yaya56vv/cortex/pkg/models"
)

// maxBodyBytes bounds request bodies; document ingestion is the largest
// legitimate payload.
const maxBodyBytes = 16 << 20

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var req models.OrchestrateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if req.ExecutionMode != "" && !req.ExecutionMode.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: "execution_mode must be auto, plan_only or step_by_step",
		})
		return
	}

	resp, err := s.kernel.Orchestrate(r.Context(), req)
	if err != nil {
		if errors.Is(err, kernel.ErrEmptyPrompt) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "prompt is required"})
			return
		}
		s.logger.Error("orchestrate failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// healthzBody is the aggregated health report.
type healthzBody struct {
	Status   string                       `json:"status"`
	Storage  string                       `json:"storage"`
	Tools    map[string]toolclient.Health `json:"tools"`
	Catalog  toolclient.Mismatch          `json:"catalog"`
	Bindings map[string]string            `json:"bindings,omitempty"`
}

// handleHealthz aggregates storage, fleet and catalog state. A catalog
// mismatch or an unreachable tool degrades the status but the endpoint
// itself stays 200: the kernel boots and serves regardless.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	body := healthzBody{
		Status:  "ok",
		Storage: "ok",
		Tools:   s.registry.HealthAll(r.Context()),
		Catalog: s.registry.CatalogMismatch(),
	}
	if s.db != nil {
		if err := s.db.SQL.PingContext(r.Context()); err != nil {
			body.Storage = "unreachable"
			body.Status = "degraded"
		}
	}
	for _, h := range body.Tools {
		if !h.OK {
			body.Status = "degraded"
			break
		}
	}
	if len(body.Catalog.MissingClients) > 0 || len(body.Catalog.UnknownTools) > 0 {
		body.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, body)
}

// handleHealth answers the fleet's tool service contract for the in-process
// tools: {status, details?}.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	details := map[string]any{}
	for _, tool := range []string{"rag", "memory", "llm"} {
		client, ok := s.registry.Resolve(tool)
		if !ok {
			continue
		}
		h := client.Health(r.Context())
		if !h.OK {
			status = "degraded"
		}
		details[tool] = h
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "details": details})
}

// toolHandler serves POST /<tool>/<action> for an in-process tool. The
// response is the tool result envelope; action-level failures stay HTTP 200
// so the caller reads the error kind from the body, matching how external
// tool services answer.
func (s *Server) toolHandler(tool string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := strings.TrimSpace(r.PathValue("action"))
		var args map[string]any
		if err := decodeJSON(r, &args); err != nil {
			writeJSON(w, http.StatusBadRequest, toolclient.Failure(action, toolclient.KindBadRequest, err.Error()))
			return
		}
		res := s.registry.Call(r.Context(), tool, action, args)
		status := http.StatusOK
		if !res.OK && res.ErrorKind == toolclient.KindUnknownAction {
			status = http.StatusNotFound
		}
		writeJSON(w, status, res)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
