package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"callqa/internal/fileutil"
	"callqa/internal/insights"
	"callqa/internal/judge"
	"callqa/internal/logging"
	"callqa/internal/pipeline"
	"callqa/internal/records"
	"callqa/internal/services"
	"callqa/internal/sop"
)

const (
	maxUploadBytes   = 512 << 20
	maxFormMemory    = 32 << 20
	maxJSONBodyBytes = 1 << 20
	maxPolicyBytes   = 4 << 20
)

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleInsights(w http.ResponseWriter, r *http.Request) {
	recs, err := s.daemon.store.ListAll(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	region := strings.TrimSpace(r.URL.Query().Get("region"))
	s.writeJSON(w, http.StatusOK, insights.Aggregate(recs, region))
}

func (s *apiServer) handleCalls(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	recs, err := s.daemon.store.List(r.Context(), records.Filter{
		Region: strings.TrimSpace(query.Get("region")),
		UserID: strings.TrimSpace(query.Get("user_id")),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *apiServer) handleCall(w http.ResponseWriter, r *http.Request) {
	rec, err := s.daemon.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *apiServer) handleCoachingNeeds(w http.ResponseWriter, r *http.Request) {
	recs, err := s.daemon.store.ListAll(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, insights.CoachingNeeds(recs))
}

func (s *apiServer) handleGetRules(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Rules())
}

type rulesUpdateResponse struct {
	Status        string `json:"status"`
	IntentsFilled int    `json:"intents_filled"`
}

func (s *apiServer) handlePutRules(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	rules, err := sop.ParseUpdate(body, s.daemon.Rules())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	filled, err := s.daemon.UpdateRules(r.Context(), rules)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rulesUpdateResponse{Status: "success", IntentsFilled: filled})
}

type suggestionRequest struct {
	Text string `json:"text"`
}

func (s *apiServer) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	if s.daemon.author == nil {
		s.writeError(w, http.StatusServiceUnavailable, "llm not configured")
		return
	}
	var req suggestionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	suggestion, err := s.daemon.author.SuggestStep(r.Context(), req.Text)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, suggestion)
}

type policyResponse struct {
	SOPID  string `json:"sop_id"`
	Chunks int    `json:"chunks"`
}

func (s *apiServer) handlePolicyUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPolicyBytes)
	if err := r.ParseMultipartForm(maxPolicyBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	text, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read policy: "+err.Error())
		return
	}
	policy, err := judge.SavePolicy(s.daemon.cfg.Paths.PoliciesDir, r.FormValue("sop_id"), string(text))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, policyResponse{SOPID: policy.SOPID, Chunks: len(policy.Chunks)})
}

// handleAnalyze stores the upload under upload_dir, evaluates it, and
// returns the call record. The upload is removed afterwards.
func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	req := pipeline.Request{
		Region:     strings.TrimSpace(r.FormValue("region")),
		UserID:     strings.TrimSpace(r.FormValue("user_id")),
		Email:      strings.TrimSpace(r.FormValue("email")),
		Name:       strings.TrimSpace(r.FormValue("name")),
		SOPID:      strings.TrimSpace(r.FormValue("sop_id")),
		SourceName: header.Filename,
	}
	if raw := strings.TrimSpace(r.FormValue("long")); raw != "" {
		long, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "long must be a boolean")
			return
		}
		req.Long = long
	}
	if raw := strings.TrimSpace(r.FormValue("sop_rules")); raw != "" {
		parsed, err := sop.Parse([]byte(raw))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		rules := s.daemon.Rules().WithChecklist(parsed.Checklist)
		req.Rules = &rules
	}

	dest := filepath.Join(s.daemon.cfg.Paths.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(header.Filename)))
	size, digest, err := fileutil.SaveStream(file, dest)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.writeServiceError(w, r, services.Wrap(services.ErrTransient, "api", "upload", "save upload", err))
		return
	}
	defer os.Remove(dest)
	req.AudioPath = dest

	logging.WithContext(r.Context(), s.log()).Info("call upload received",
		logging.String(logging.FieldEventType, "upload_received"),
		logging.String("source_file", header.Filename),
		logging.Int("bytes", int(size)),
		logging.String("sha256", digest),
	)

	// Evaluation outlives the default write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	rec, err := s.daemon.Analyze(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}
