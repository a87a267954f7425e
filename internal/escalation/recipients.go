package escalation

import (
	"context"
	"sort"

	"facilities-maintenance-backend/internal/model"
)

// RoleDirectory finds the users holding any of a set of roles.
type RoleDirectory interface {
	UsersWithRoles(ctx context.Context, roles []string) ([]model.User, error)
}

// UserLister is the identity data a StoreDirectory reads.
type UserLister interface {
	ActiveUsers(ctx context.Context) ([]model.User, error)
}

// StoreDirectory answers role lookups from the user table.
type StoreDirectory struct {
	users UserLister
}

// NewStoreDirectory creates a directory over users.
func NewStoreDirectory(users UserLister) *StoreDirectory {
	return &StoreDirectory{users: users}
}

// UsersWithRoles returns active users carrying at least one of roles.
func (d *StoreDirectory) UsersWithRoles(ctx context.Context, roles []string) ([]model.User, error) {
	all, err := d.users.ActiveUsers(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.User
	for _, u := range all {
		for _, r := range roles {
			if u.HasRole(r) {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

// rolesForLevel returns the configured roles of level. Levels above the
// highest configured one reuse it.
func rolesForLevel(levelRoles map[int][]string, level int) []string {
	if roles, ok := levelRoles[level]; ok {
		return roles
	}
	keys := make([]int, 0, len(levelRoles))
	for k := range levelRoles {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	var roles []string
	for _, k := range keys {
		if k > level {
			break
		}
		roles = levelRoles[k]
	}
	return roles
}

func userIDs(users []model.User) []int64 {
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}
