package effis

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/api/middleware"
	"github.com/eludris/eludris/pkg/config"
	"github.com/eludris/eludris/pkg/filestore"
	"github.com/eludris/eludris/pkg/metrics"
	"github.com/eludris/eludris/pkg/models"
	"github.com/eludris/eludris/pkg/ratelimit"
)

// maxThumbnailSize bounds the size query parameter.
const maxThumbnailSize = 4096

// NewRouter configures the file service routes.
func NewRouter(cfg *config.Config, files *filestore.Service, limiter *ratelimit.Limiter) http.Handler {
	h := &handler{cfg: cfg, files: files, limiter: limiter}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	r.Handle("/metrics", metrics.Handler())

	r.Get("/proxy", h.proxy)
	r.Post("/{bucket}", h.upload)
	r.Get("/{bucket}/{id}", h.fetch)
	r.Get("/{bucket}/{id}/download", h.download)
	r.Get("/{bucket}/{id}/data", h.data)

	return r
}

type handler struct {
	cfg     *config.Config
	files   *filestore.Service
	limiter *ratelimit.Limiter
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// upload answers POST /{bucket} with a multipart form carrying the file.
func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	if !models.ValidBucket(bucket) {
		models.ErrNotFound().WriteJSON(w)
		return
	}

	// The attachments bucket gets its own limits; every other bucket shares
	// the asset ones.
	rateName, rateCfg := "assets", h.cfg.Effis.RateLimits.Assets
	sizeLimit := h.cfg.Effis.FileSize
	if bucket == models.BucketAttachments {
		rateName, rateCfg = "attachments", h.cfg.Effis.RateLimits.Attachments
		sizeLimit = h.cfg.Effis.AttachmentFileSize
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		models.ErrValidation("file", "Expected a multipart form with a file field").WriteJSON(w)
		return
	}
	defer file.Close()

	res, apiErr := h.limiter.CheckBytes(r.Context(), rateCfg.Bucket(rateName), middleware.RemoteIP(r), uint64(max(header.Size, 0)))
	res.Headers(w.Header())
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	data, err := h.files.Upload(r.Context(), bucket, header.Filename, file, sizeLimit)
	if err != nil {
		metrics.FileUploads.WithLabelValues(bucket, "error").Inc()
		models.AsAPIError(err).WriteJSON(w)
		return
	}
	metrics.FileUploads.WithLabelValues(bucket, "ok").Inc()
	metrics.FileBytes.WithLabelValues(bucket).Add(float64(max(header.Size, 0)))

	respondJSON(w, http.StatusOK, data)
}

// resolve parses the bucket, id and optional size parameters, applying the
// fetch rate limit.
func (h *handler) resolve(w http.ResponseWriter, r *http.Request) (string, uint64, int, bool) {
	bucket := chi.URLParam(r, "bucket")
	if !models.ValidBucket(bucket) {
		models.ErrNotFound().WriteJSON(w)
		return "", 0, 0, false
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		models.ErrValidation("id", "Expected a numeric file id").WriteJSON(w)
		return "", 0, 0, false
	}

	size := 0
	if raw := r.URL.Query().Get("size"); raw != "" {
		if !models.ResizableBucket(bucket) {
			models.ErrValidation("size", "This bucket does not support resizing").WriteJSON(w)
			return "", 0, 0, false
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxThumbnailSize {
			models.ErrValidation("size", "Expected a size between 1 and 4096").WriteJSON(w)
			return "", 0, 0, false
		}
		size = v
	}

	rate := h.cfg.Effis.RateLimits.FetchFile
	res, apiErr := h.limiter.Check(r.Context(), rate.Bucket("fetch_file"), middleware.RemoteIP(r))
	res.Headers(w.Header())
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return "", 0, 0, false
	}
	return bucket, id, size, true
}

func (h *handler) serve(w http.ResponseWriter, r *http.Request, disposition string) {
	bucket, id, size, ok := h.resolve(w, r)
	if !ok {
		return
	}

	file, blob, err := h.files.Fetch(r.Context(), bucket, id, size)
	if err != nil {
		models.AsAPIError(err).WriteJSON(w)
		return
	}
	defer blob.Close()

	info, err := blob.Stat()
	if err != nil {
		models.ErrServer("Failed to read file").WriteJSON(w)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, file.Name))
	http.ServeContent(w, r, file.Name, info.ModTime(), blob)
}

// fetch answers GET /{bucket}/{id}, serving the blob inline.
func (h *handler) fetch(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "inline")
}

// download answers GET /{bucket}/{id}/download with an attachment
// disposition.
func (h *handler) download(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "attachment")
}

// data answers GET /{bucket}/{id}/data with the file's public metadata.
func (h *handler) data(w http.ResponseWriter, r *http.Request) {
	bucket, id, _, ok := h.resolve(w, r)
	if !ok {
		return
	}
	file, blob, err := h.files.Fetch(r.Context(), bucket, id, 0)
	if err != nil {
		models.AsAPIError(err).WriteJSON(w)
		return
	}
	blob.Close()
	respondJSON(w, http.StatusOK, file.Data())
}

// proxy answers GET /proxy?url=… by fetching remote media server-side.
func (h *handler) proxy(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		models.ErrValidation("url", "Expected a url query parameter").WriteJSON(w)
		return
	}

	rate := h.cfg.Effis.RateLimits.ProxyFile
	res, apiErr := h.limiter.Check(r.Context(), rate.Bucket("proxy_file"), middleware.RemoteIP(r))
	res.Headers(w.Header())
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	body, contentType, err := h.files.Proxy(r.Context(), url, h.cfg.Effis.ProxyFileSize)
	if err != nil {
		models.AsAPIError(err).WriteJSON(w)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(body)
}

// requestLogger mirrors the API server's request logging for the file routes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimw.GetReqID(r.Context())

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		metrics.HTTPRequests.WithLabelValues("effis", r.Method, fmt.Sprintf("%dxx", ww.Status()/100)).Inc()
		metrics.HTTPDuration.WithLabelValues("effis", r.Method).Observe(duration.Seconds())

		logger.Info("file request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		)
	})
}
