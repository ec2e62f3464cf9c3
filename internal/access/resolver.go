// Package access decides whether a caller may operate on a bucket. The
// same resolver gates every bucket-scoped entry point; nothing derives
// the admin/grant logic per handler.
package access

import (
	"context"
	"errors"
	"strings"

	"github.com/bucketview/bucketview/internal/db"
)

var (
	// ErrDenied means the caller is authenticated but holds no grant for
	// the bucket.
	ErrDenied = errors.New("access to bucket denied")
	// ErrNoRole means the caller has no role assigned at all.
	ErrNoRole = errors.New("no role assigned")
)

// Resolver authorizes bucket-scoped operations. It must be consulted
// before any object-store call is issued: the check fails closed rather
// than after a wasted round trip.
type Resolver interface {
	// Authorize returns nil when the user may operate on the bucket.
	Authorize(ctx context.Context, userID, bucketID string) error
	// VisibleRole returns the caller's role, or nil with elevated=true
	// for superadmins without one.
	VisibleRole(ctx context.Context, userID string) (role *db.Role, elevated bool, err error)
}

type resolver struct {
	store *db.Store
}

// NewResolver creates a Resolver over the relational store.
func NewResolver(store *db.Store) Resolver {
	return &resolver{store: store}
}

// Authorize grants superadmin/admin users and holders of the "admin"
// role access to every bucket under every account. Everyone else needs
// an explicit role-to-bucket grant.
func (r *resolver) Authorize(ctx context.Context, userID, bucketID string) error {
	user, err := r.store.GetUserByID(userID)
	if err != nil {
		return err
	}

	if user.UserType == db.UserTypeSuperadmin || user.UserType == db.UserTypeAdmin {
		return nil
	}

	role, err := r.store.FindRoleForUser(userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrNoRole
		}
		return err
	}

	if strings.EqualFold(role.Name, db.RoleAdmin) {
		return nil
	}

	granted, err := r.store.HasGrant(role.ID, bucketID)
	if err != nil {
		return err
	}
	if !granted {
		return ErrDenied
	}

	return nil
}

// VisibleRole resolves the caller's role and whether they bypass grant
// checks entirely.
func (r *resolver) VisibleRole(ctx context.Context, userID string) (*db.Role, bool, error) {
	user, err := r.store.GetUserByID(userID)
	if err != nil {
		return nil, false, err
	}

	elevated := user.UserType == db.UserTypeSuperadmin || user.UserType == db.UserTypeAdmin

	role, err := r.store.FindRoleForUser(userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			if elevated {
				return nil, true, nil
			}
			return nil, false, ErrNoRole
		}
		return nil, false, err
	}

	if strings.EqualFold(role.Name, db.RoleAdmin) {
		elevated = true
	}

	return role, elevated, nil
}
