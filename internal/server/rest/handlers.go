package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrijs2005/ingestor/internal/common"
	"github.com/dmitrijs2005/ingestor/internal/server/models"
	"github.com/dmitrijs2005/ingestor/internal/server/query"
)

// --- auth ---

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	user, token, err := s.users.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{User: user, Token: token})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	user, token, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: user, Token: token})
}

// --- event intake ---

// eventBody accepts the event source's native envelope. A flat
// {"records": [...]} list or a bare notification object is accepted too.
type eventBody struct {
	Records []struct {
		S3 struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key  string `json:"key"`
				Size int64  `json:"size"`
				ETag string `json:"eTag"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// ingestEvents enqueues object-created notifications for the worker pool and
// answers 202 before processing finishes. Delivery is at-least-once, so a
// caller retrying after a non-2xx answer is always safe.
func (s *Server) ingestEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	notifications, err := parseEventBody(body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	log := s.logger.With("request_id", requestID(r.Context()))
	accepted := 0
	for _, n := range notifications {
		if !s.pool.Submit(n) {
			log.Warn(r.Context(), "pool not accepting jobs", "key", n.Key)
			writeJSONError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		accepted++
	}
	log.Info(r.Context(), "notifications accepted", "count", accepted)
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": accepted})
}

func parseEventBody(body []byte) ([]models.Notification, error) {
	// json matches keys case-insensitively, so a flat {"records": [...]}
	// list also lands in env.Records with zero S3 sub-structs. Only treat
	// the body as an envelope when the records actually carry s3 data.
	var env eventBody
	if err := json.Unmarshal(body, &env); err == nil && len(env.Records) > 0 &&
		env.Records[0].S3.Bucket.Name != "" {
		out := make([]models.Notification, 0, len(env.Records))
		for _, rec := range env.Records {
			if rec.S3.Bucket.Name == "" || rec.S3.Object.Key == "" {
				return nil, errors.New("record without bucket or key")
			}
			// the event source URL-encodes object keys
			key, err := url.QueryUnescape(rec.S3.Object.Key)
			if err != nil {
				return nil, fmt.Errorf("undecodable object key %q", rec.S3.Object.Key)
			}
			out = append(out, models.Notification{
				Bucket: rec.S3.Bucket.Name,
				Key:    key,
				Size:   rec.S3.Object.Size,
				ETag:   rec.S3.Object.ETag,
			})
		}
		return out, nil
	}

	var flat struct {
		Records []models.Notification `json:"records"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && len(flat.Records) > 0 {
		for _, n := range flat.Records {
			if n.Bucket == "" || n.Key == "" {
				return nil, errors.New("record without bucket or key")
			}
		}
		return flat.Records, nil
	}

	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil || n.Bucket == "" || n.Key == "" {
		return nil, errors.New("expected an event envelope or a notification with bucket and key")
	}
	return []models.Notification{n}, nil
}

// --- metadata queries ---

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	listing, err := s.query.List(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.query.GetByKey(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func parseListParams(r *http.Request) (query.Params, error) {
	q := r.URL.Query()
	p := query.Params{Status: q.Get("status")}

	var err error
	if p.From, err = parseTimeParam(q.Get("from")); err != nil {
		return p, err
	}
	if p.To, err = parseTimeParam(q.Get("to")); err != nil {
		return p, err
	}
	if p.Page, err = parseIntParam(q.Get("page"), "page", 0); err != nil {
		return p, err
	}
	if p.Limit, err = parseIntParam(q.Get("limit"), "limit", 1); err != nil {
		return p, err
	}
	return p, nil
}

// parseTimeParam accepts RFC 3339 timestamps or bare dates.
func parseTimeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid timestamp %q: %w", v, common.ErrorValidation)
}

func parseIntParam(v, name string, min int) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, common.ErrorValidation)
	}
	return n, nil
}

// --- per-user objects ---

func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer file.Close()

	key, err := s.files.Upload(r.Context(), userID(r.Context()), header.Filename,
		file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "file uploaded",
		"request_id", requestID(r.Context()), "key", key, "size", header.Size)
	w.Header().Set("Location", "/user/files/"+key)
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	infos, err := s.files.List(r.Context(), userID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) downloadFile(w http.ResponseWriter, r *http.Request) {
	rc, size, err := s.files.Download(r.Context(), userID(r.Context()), r.PathValue("key"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Error(r.Context(), "download interrupted",
			"request_id", requestID(r.Context()), "error", err)
	}
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.files.Delete(r.Context(), userID(r.Context()), r.PathValue("key")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- health ---

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	result := map[string]string{"status": "ok"}
	status := http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		result["status"] = "degraded"
		result["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	} else {
		result["database"] = "connected"
	}
	writeJSON(w, status, result)
}

// --- plumbing ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps service errors onto HTTP statuses. Internal details stay
// in the log, not in the response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, common.ErrorForbidden):
		writeJSONError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, common.ErrorEmailTaken):
		writeJSONError(w, http.StatusConflict, "email already registered")
	default:
		s.logger.Error(r.Context(), "request failed",
			"request_id", requestID(r.Context()), "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}
