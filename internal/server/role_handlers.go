package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/bucketview/bucketview/internal/db"
)

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "role name is required")
		return
	}

	role := &db.Role{ID: uuid.NewString(), Name: req.Name}
	if err := s.store.CreateRole(role); err != nil {
		writeOperationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "role created successfully",
		"id":      role.ID,
	})
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireIdentity(w, r); !ok {
		return
	}

	roles, err := s.store.ListRoles()
	if err != nil {
		writeOperationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "roles retrieved successfully",
		"data":    roles,
	})
}

func (s *Server) handleAssignBucket(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	vars := mux.Vars(r)
	if err := s.store.AssignBucketToRole(vars["roleId"], vars["bucketId"]); err != nil {
		writeOperationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "bucket assigned to role successfully"})
}

func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	vars := mux.Vars(r)
	if err := s.store.AssignRoleToUser(vars["userId"], vars["roleId"]); err != nil {
		writeOperationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "role assigned to user successfully"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	users, err := s.store.ListUsers()
	if err != nil {
		writeOperationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}
