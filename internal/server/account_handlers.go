package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/bucketview/bucketview/internal/auth"
	"github.com/bucketview/bucketview/internal/db"
)

// requireIdentity resolves the authenticated caller or writes a 401.
func (s *Server) requireIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return nil, false
	}
	return identity, true
}

// requireAdmin additionally checks that the caller bypasses grant
// checks (superadmin/admin user type, or the admin role).
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := s.requireIdentity(w, r)
	if !ok {
		return nil, false
	}

	_, elevated, err := s.resolver.VisibleRole(r.Context(), identity.UserID)
	if err != nil {
		writeOperationError(w, r, err)
		return nil, false
	}
	if !elevated {
		writeError(w, http.StatusForbidden, "administrator access required")
		return nil, false
	}

	return identity, true
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	role, elevated, err := s.resolver.VisibleRole(r.Context(), identity.UserID)
	if err != nil {
		writeOperationError(w, r, err)
		return
	}

	var accounts []*db.StorageAccount
	if elevated {
		accounts, err = s.store.ListAccounts()
	} else {
		accounts, err = s.store.ListAccountsForRole(role.ID)
	}
	if err != nil {
		writeOperationError(w, r, err)
		return
	}

	type accountView struct {
		ID          string `json:"id"`
		AccountName string `json:"account_name"`
		Region      string `json:"region"`
	}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView{ID: a.ID, AccountName: a.AccountName, Region: a.Region})
	}

	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	var req struct {
		AccountName     string `json:"accountName"`
		Region          string `json:"region"`
		Endpoint        string `json:"endpoint"`
		AccessKeyID     string `json:"accessKeyId"`
		SecretAccessKey string `json:"secretAccessKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountName == "" || req.Region == "" || req.AccessKeyID == "" || req.SecretAccessKey == "" {
		writeError(w, http.StatusBadRequest, "accountName, region, accessKeyId and secretAccessKey are required")
		return
	}

	accessKeyEnc, err := s.codec.Encrypt(req.AccessKeyID)
	if err != nil {
		writeOperationError(w, r, err)
		return
	}
	secretKeyEnc, err := s.codec.Encrypt(req.SecretAccessKey)
	if err != nil {
		writeOperationError(w, r, err)
		return
	}

	account := &db.StorageAccount{
		ID:              uuid.NewString(),
		AccountName:     req.AccountName,
		Region:          req.Region,
		Endpoint:        req.Endpoint,
		AccessKeyID:     accessKeyEnc,
		SecretAccessKey: secretKeyEnc,
	}
	if err := s.store.CreateAccount(account); err != nil {
		writeOperationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "account created successfully",
		"id":      account.ID,
	})
}

func (s *Server) handleRotateCredentials(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	accountID := mux.Vars(r)["id"]

	var req struct {
		AccessKeyID     string `json:"accessKeyId"`
		SecretAccessKey string `json:"secretAccessKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccessKeyID == "" || req.SecretAccessKey == "" {
		writeError(w, http.StatusBadRequest, "accessKeyId and secretAccessKey are required")
		return
	}

	accessKeyEnc, err := s.codec.Encrypt(req.AccessKeyID)
	if err != nil {
		writeOperationError(w, r, err)
		return
	}
	secretKeyEnc, err := s.codec.Encrypt(req.SecretAccessKey)
	if err != nil {
		writeOperationError(w, r, err)
		return
	}

	if err := s.store.UpdateAccountCredentials(accountID, accessKeyEnc, secretKeyEnc); err != nil {
		writeOperationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "credentials rotated successfully"})
}

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	accountID := mux.Vars(r)["id"]

	role, elevated, err := s.resolver.VisibleRole(r.Context(), identity.UserID)
	if err != nil {
		writeOperationError(w, r, err)
		return
	}

	var buckets []*db.Bucket
	if elevated {
		buckets, err = s.store.ListBucketsByAccount(accountID)
	} else {
		buckets, err = s.store.ListGrantedBuckets(role.ID, accountID)
	}
	if err != nil {
		writeOperationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, buckets)
}

func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	accountID := mux.Vars(r)["id"]

	var req struct {
		Alias      string `json:"alias"`
		BucketName string `json:"bucketName"`
		BaseURL    string `json:"baseUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Alias == "" || req.BucketName == "" {
		writeError(w, http.StatusBadRequest, "alias and bucketName are required")
		return
	}

	bucket := &db.Bucket{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		Alias:      req.Alias,
		BucketName: req.BucketName,
		BaseURL:    req.BaseURL,
	}
	if err := s.store.CreateBucket(bucket); err != nil {
		writeOperationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "bucket registered successfully",
		"id":      bucket.ID,
	})
}

func (s *Server) handleDeleteBucket(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	if err := s.store.DeleteBucket(mux.Vars(r)["id"]); err != nil {
		writeOperationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "bucket deleted successfully"})
}
