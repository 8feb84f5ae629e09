package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/workmait/digestd/internal/bus"
	"github.com/workmait/digestd/internal/event"
	"github.com/workmait/digestd/internal/filestore"
	"github.com/workmait/digestd/internal/logging"
	"github.com/workmait/digestd/internal/metrics"
	"github.com/workmait/digestd/internal/notify"
)

// maxUploadBytes bounds multipart uploads (64 MiB).
const maxUploadBytes = 64 << 20

// Defaults fill request fields the client omitted.
type Defaults struct {
	Namespace  string
	Strategies []string
}

// DigestHandler accepts digestion requests over HTTP and publishes them
// to the event bus. Processing is asynchronous; every mutating endpoint
// answers 202 with the published entry ID.
type DigestHandler struct {
	bus      bus.Bus
	files    *filestore.Local
	notifier *notify.Notifier
	defaults Defaults
	ready    func(ctx context.Context) error
	logger   *slog.Logger
}

// NewDigestHandler builds the handler. ready is consulted by the
// readiness endpoint and may be nil.
func NewDigestHandler(b bus.Bus, files *filestore.Local, notifier *notify.Notifier, defaults Defaults, ready func(ctx context.Context) error, logger *slog.Logger) *DigestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DigestHandler{
		bus:      b,
		files:    files,
		notifier: notifier,
		defaults: defaults,
		ready:    ready,
		logger:   logger,
	}
}

// UploadFile accepts a multipart upload, stores the file, and publishes
// an add-nodes event for it.
//
// Form fields: file (required), namespace, strategies (comma separated),
// file_type, metadata (JSON object of strings).
func (h *DigestHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.sendError(w, http.StatusBadRequest, "parse multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "form field \"file\" is required")
		return
	}
	defer file.Close()

	fileType, err := h.resolveFileType(r.FormValue("file_type"), header.Filename)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	var metadata map[string]string
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			h.sendError(w, http.StatusBadRequest, "metadata must be a JSON object of strings")
			return
		}
	}

	fileID := uuid.NewString()
	storedPath := fileID + "/" + path.Base(header.Filename)
	if _, err := h.files.Write(r.Context(), storedPath, file); err != nil {
		h.sendError(w, http.StatusInternalServerError, "store file: "+err.Error())
		return
	}
	metrics.UploadsTotal.Inc()
	metrics.UploadBytesTotal.Add(float64(header.Size))

	req := event.AddNodesRequest{
		Namespace:  h.orDefaultNamespace(r.FormValue("namespace")),
		Strategies: h.orDefaultStrategies(r.FormValue("strategies")),
		Files: []event.FileRef{{
			FileID:   fileID,
			FileType: fileType,
			FilePath: storedPath,
			Metadata: metadata,
		}},
	}
	if err := req.Validate(); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	entryID, err := h.publish(r.Context(), event.TypeAddNodes, &req)
	if err != nil {
		h.sendError(w, http.StatusServiceUnavailable, "publish event: "+err.Error())
		return
	}

	h.sendJSON(w, http.StatusAccepted, map[string]string{
		"entry_id": entryID,
		"file_id":  fileID,
	})
}

// AddNodes publishes an add-nodes event for files already present in the
// file store.
func (h *DigestHandler) AddNodes(w http.ResponseWriter, r *http.Request) {
	var req event.AddNodesRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Namespace == "" {
		req.Namespace = h.defaults.Namespace
	}
	if len(req.Strategies) == 0 {
		req.Strategies = h.defaults.Strategies
	}
	if err := req.Validate(); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.accept(w, r, event.TypeAddNodes, &req)
}

// DeleteNodes publishes a delete-nodes event.
func (h *DigestHandler) DeleteNodes(w http.ResponseWriter, r *http.Request) {
	var req event.DeleteNodesRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Namespace == "" {
		h.sendError(w, http.StatusBadRequest, "namespace is required")
		return
	}
	h.accept(w, r, event.TypeDeleteNodes, &req)
}

// MoveNodes publishes a move-nodes event.
func (h *DigestHandler) MoveNodes(w http.ResponseWriter, r *http.Request) {
	var req event.MoveNodesRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.SourceNamespace == "" || req.TargetNamespace == "" {
		h.sendError(w, http.StatusBadRequest, "source_namespace and target_namespace are required")
		return
	}
	h.accept(w, r, event.TypeMoveNodes, &req)
}

// DeleteStore publishes a delete-store event.
func (h *DigestHandler) DeleteStore(w http.ResponseWriter, r *http.Request) {
	var req event.DeleteStoreRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Namespace == "" {
		h.sendError(w, http.StatusBadRequest, "namespace is required")
		return
	}
	h.accept(w, r, event.TypeDeleteStore, &req)
}

// Events streams digestion completions as server-sent events until the
// client disconnects.
func (h *DigestHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		h.sendError(w, http.StatusNotImplemented, "notifications disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.sendError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Callbacks run on the notifier's pool; bridge to this handler's
	// goroutine through a buffered channel so a stalled client cannot
	// block the pool.
	updates := make(chan map[string]string, 16)
	unsubscribe := h.notifier.Subscribe(notify.DigestComplete, func(data map[string]string) {
		select {
		case updates <- data:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-updates:
			payload, err := json.Marshal(data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", notify.DigestComplete, payload)
			flusher.Flush()
		}
	}
}

// Health reports liveness.
func (h *DigestHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the service can reach its bus.
func (h *DigestHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.sendJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	h.sendJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *DigestHandler) accept(w http.ResponseWriter, r *http.Request, eventType string, req fielder) {
	entryID, err := h.publish(r.Context(), eventType, req)
	if err != nil {
		h.sendError(w, http.StatusServiceUnavailable, "publish event: "+err.Error())
		return
	}
	h.sendJSON(w, http.StatusAccepted, map[string]string{"entry_id": entryID})
}

type fielder interface {
	Fields() (map[string]any, error)
}

func (h *DigestHandler) publish(ctx context.Context, eventType string, req fielder) (string, error) {
	fields, err := req.Fields()
	if err != nil {
		return "", err
	}
	entryID, err := h.bus.Publish(ctx, eventType, fields)
	if err != nil {
		return "", err
	}
	h.logger.Info("event published",
		logging.EventType(eventType),
		logging.EntryID(entryID))
	return entryID, nil
}

func (h *DigestHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.sendError(w, http.StatusBadRequest, "decode request: "+err.Error())
		return false
	}
	return true
}

func (h *DigestHandler) resolveFileType(form, filename string) (event.FileType, error) {
	if form != "" {
		return event.ParseFileType(form)
	}
	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf":
		return event.FileTypePDF, nil
	case ".xls", ".xlsx", ".csv":
		return event.FileTypeExcel, nil
	case ".doc", ".docx", ".txt", ".md":
		return event.FileTypeDoc, nil
	case ".ppt", ".pptx":
		return event.FileTypePPT, nil
	default:
		return "", fmt.Errorf("cannot infer file type from %q, pass file_type", filename)
	}
}

func (h *DigestHandler) orDefaultNamespace(ns string) string {
	if ns == "" {
		return h.defaults.Namespace
	}
	return ns
}

func (h *DigestHandler) orDefaultStrategies(raw string) []string {
	if raw == "" {
		return h.defaults.Strategies
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (h *DigestHandler) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *DigestHandler) sendError(w http.ResponseWriter, status int, msg string) {
	h.sendJSON(w, status, map[string]string{"error": msg})
}
