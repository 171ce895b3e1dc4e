// Package authz is the single place where role based permissions are
// decided. The decision table below is the whole model: no inheritance,
// no dynamic capabilities. Ownership checks (an Owner may only read stats
// for the store whose owner reference matches their own id) live next to
// the data they guard, not here.
package authz

import "github.com/geocoder89/ratehub/internal/domain/user"

type Action string

const (
	ActionListUsers      Action = "users.list"
	ActionCreateUser     Action = "users.create"
	ActionCreateStore    Action = "stores.create"
	ActionListStores     Action = "stores.list"
	ActionSubmitRating   Action = "stores.rate"
	ActionViewOwnStats   Action = "stores.mystats"
	ActionViewAdminStats Action = "stores.admin_stats"
	ActionChangePassword Action = "auth.change_password"
)

// allow is the role-action matrix, verbatim from the product rules.
var allow = map[user.Role]map[Action]bool{
	user.RoleAdmin: {
		ActionListUsers:      true,
		ActionCreateUser:     true,
		ActionCreateStore:    true,
		ActionListStores:     true,
		ActionViewAdminStats: true,
		ActionChangePassword: true,
	},
	user.RoleOwner: {
		ActionListStores:     true,
		ActionViewOwnStats:   true,
		ActionChangePassword: true,
	},
	user.RoleNormal: {
		ActionListStores:     true,
		ActionSubmitRating:   true,
		ActionChangePassword: true,
	},
}

// Can reports whether role may perform action. Unknown roles and unknown
// actions are always denied.
func Can(role user.Role, action Action) bool {
	perms, ok := allow[role]
	if !ok {
		return false
	}
	return perms[action]
}
