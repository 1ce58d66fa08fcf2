package identity

import (
	"github.com/jcmexdev/storefront/internal/pkg/apperr"
	user "github.com/jcmexdev/storefront/internal/user-service/domain"
)

type Action string

const (
	ActionShop          Action = "shop"
	ActionManageOrders  Action = "orders:manage"
	ActionReadAllOrders Action = "orders:read-all"
	ActionManageCatalog Action = "catalog:manage"
	ActionReadAnalytics Action = "analytics:read"
	ActionReadCustomers Action = "customers:read"
)

var adminOnly = map[Action]bool{
	ActionManageOrders:  true,
	ActionReadAllOrders: true,
	ActionManageCatalog: true,
	ActionReadAnalytics: true,
	ActionReadCustomers: true,
}

// Authorize is the single policy consulted for every protected route.
func Authorize(id Identity, action Action) error {
	if id.UserID == "" {
		return apperr.New(apperr.KindAuthenticationRequired, "Authentication required")
	}
	if action == ActionShop {
		return nil
	}
	if adminOnly[action] && id.Role == user.RoleAdmin {
		return nil
	}
	return apperr.New(apperr.KindUnauthorized, "You are not allowed to perform this action")
}
