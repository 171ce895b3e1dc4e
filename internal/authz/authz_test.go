package authz

import (
	"testing"

	"github.com/geocoder89/ratehub/internal/domain/user"
)

func TestDecisionTable(t *testing.T) {
	tests := []struct {
		name   string
		role   user.Role
		action Action
		want   bool
	}{
		{"admin_lists_users", user.RoleAdmin, ActionListUsers, true},
		{"admin_creates_user", user.RoleAdmin, ActionCreateUser, true},
		{"admin_creates_store", user.RoleAdmin, ActionCreateStore, true},
		{"admin_lists_stores", user.RoleAdmin, ActionListStores, true},
		{"admin_cannot_rate", user.RoleAdmin, ActionSubmitRating, false},
		{"admin_cannot_view_own_stats", user.RoleAdmin, ActionViewOwnStats, false},
		{"admin_views_admin_stats", user.RoleAdmin, ActionViewAdminStats, true},

		{"owner_lists_stores", user.RoleOwner, ActionListStores, true},
		{"owner_views_own_stats", user.RoleOwner, ActionViewOwnStats, true},
		{"owner_cannot_rate", user.RoleOwner, ActionSubmitRating, false},
		{"owner_cannot_list_users", user.RoleOwner, ActionListUsers, false},
		{"owner_cannot_create_store", user.RoleOwner, ActionCreateStore, false},
		{"owner_cannot_view_admin_stats", user.RoleOwner, ActionViewAdminStats, false},

		{"normal_rates", user.RoleNormal, ActionSubmitRating, true},
		{"normal_lists_stores", user.RoleNormal, ActionListStores, true},
		{"normal_cannot_list_users", user.RoleNormal, ActionListUsers, false},
		{"normal_cannot_create_store", user.RoleNormal, ActionCreateStore, false},
		{"normal_cannot_view_own_stats", user.RoleNormal, ActionViewOwnStats, false},

		{"everyone_changes_own_password_admin", user.RoleAdmin, ActionChangePassword, true},
		{"everyone_changes_own_password_owner", user.RoleOwner, ActionChangePassword, true},
		{"everyone_changes_own_password_normal", user.RoleNormal, ActionChangePassword, true},

		{"unknown_role_denied", user.Role("Superuser"), ActionListStores, false},
		{"unknown_action_denied", user.RoleAdmin, Action("stores.delete"), false},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			if got := Can(tt.role, tt.action); got != tt.want {
				t.Fatalf("Can(%q, %q) = %v, want %v", tt.role, tt.action, got, tt.want)
			}
		})
	}
}
