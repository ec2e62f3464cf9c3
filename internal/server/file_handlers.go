package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/bucketview/bucketview/internal/object"
	"github.com/bucketview/bucketview/internal/objstore"
)

const maxUploadMemory = 32 << 20 // 32 MiB before multipart parts spill to disk

// resolveTarget authorizes the caller against the bucket named in the
// route and builds the operation target from the bucket's stored
// configuration. Authorization runs before anything touches the object
// store.
func (s *Server) resolveTarget(w http.ResponseWriter, r *http.Request) (*object.Target, bool) {
	identity, ok := s.requireIdentity(w, r)
	if !ok {
		return nil, false
	}

	bucketID := mux.Vars(r)["id"]

	if err := s.resolver.Authorize(r.Context(), identity.UserID, bucketID); err != nil {
		writeOperationError(w, r, err)
		return nil, false
	}

	cfg, err := s.store.GetBucketConfig(bucketID)
	if err != nil {
		writeOperationError(w, r, err)
		return nil, false
	}

	accessKey, err := s.codec.Decrypt(cfg.AccessKeyID)
	if err != nil {
		writeOperationError(w, r, err)
		return nil, false
	}
	secretKey, err := s.codec.Decrypt(cfg.SecretAccessKey)
	if err != nil {
		writeOperationError(w, r, err)
		return nil, false
	}

	return &object.Target{
		Bucket:  cfg.BucketName,
		BaseURL: cfg.BaseURL,
		Creds: objstore.Credentials{
			Region:          cfg.Region,
			AccessKeyID:     accessKey,
			SecretAccessKey: secretKey,
			Endpoint:        cfg.Endpoint,
		},
	}, true
}

func (s *Server) handleListByFolder(w http.ResponseWriter, r *http.Request) {
	target, ok := s.resolveTarget(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	folder := query.Get("folder")
	token := query.Get("continuationToken")

	limit := int32(0)
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = int32(parsed)
	}

	result, err := s.objects.ListFolder(r.Context(), *target, folder, limit, token)
	s.metrics.ObserveObjectOp("list", err)
	if err != nil {
		writeOperationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearchFiles(w http.ResponseWriter, r *http.Request) {
	target, ok := s.resolveTarget(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	term := query.Get("search")
	if term == "" {
		writeError(w, http.StatusBadRequest, "search term is required")
		return
	}

	result, err := s.objects.Search(r.Context(), *target, query.Get("folder"), term)
	s.metrics.ObserveObjectOp("search", err)
	if err != nil {
		writeOperationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	target, ok := s.resolveTarget(w, r)
	if !ok {
		return
	}

	var req struct {
		OldKey string `json:"oldKey"`
		NewKey string `json:"newKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OldKey == "" || req.NewKey == "" {
		writeError(w, http.StatusBadRequest, "oldKey and newKey are required")
		return
	}

	err := s.objects.Rename(r.Context(), *target, req.OldKey, req.NewKey)
	s.metrics.ObserveObjectOp("rename", err)
	if err != nil {
		writeOperationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "file renamed successfully",
		"newKey":  req.NewKey,
	})
}

func (s *Server) handleDeleteFiles(w http.ResponseWriter, r *http.Request) {
	target, ok := s.resolveTarget(w, r)
	if !ok {
		return
	}

	var req struct {
		FilePaths []string `json:"filePaths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.FilePaths) == 0 {
		writeError(w, http.StatusBadRequest, "filePaths is required")
		return
	}

	err := s.objects.Delete(r.Context(), *target, req.FilePaths)
	s.metrics.ObserveObjectOp("delete", err)
	if err != nil {
		writeOperationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "files deleted successfully"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	target, ok := s.resolveTarget(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files were uploaded")
		return
	}

	basePrefix := r.FormValue("basePrefix")

	files := make([]object.UploadFile, 0, len(headers))
	var opened []io.Closer
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read file %s", header.Filename))
			return
		}
		opened = append(opened, file)

		files = append(files, object.UploadFile{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Data:        file,
		})
	}

	results := s.objects.Upload(r.Context(), *target, basePrefix, files)
	failed := 0
	for _, result := range results {
		if result.Error != "" {
			failed++
		}
	}
	s.metrics.ObserveObjectOp("upload", nil)

	message := "files uploaded successfully"
	if failed > 0 {
		message = fmt.Sprintf("%d of %d files failed to upload", failed, len(results))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": message,
		"files":   results,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	target, ok := s.resolveTarget(w, r)
	if !ok {
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	info, body, err := s.objects.Download(r.Context(), *target, key)
	s.metrics.ObserveObjectOp("download", err)
	if err != nil {
		writeOperationError(w, r, err)
		return
	}
	defer body.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.ContentLength, 10))
	}
	if !info.LastModified.IsZero() {
		w.Header().Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	}
	if info.ETag != "" {
		w.Header().Set("ETag", info.ETag)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))

	// Relay without buffering; a client disconnect cancels r.Context(),
	// which aborts the store read and releases the connection
	if _, err := io.Copy(w, body); err != nil {
		logrus.WithFields(logrus.Fields{
			"bucket": target.Bucket,
			"key":    key,
		}).WithError(err).Debug("Download stream interrupted")
	}
}
