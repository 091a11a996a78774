package service

import (
	"product-user-services/internal/core/auth"
	"product-user-services/internal/domain"
)

// CanMutate 商品只能由其 owner 在未软删时修改
func CanMutate(actor auth.Actor, p *domain.Product) bool {
	return p != nil && actor.ID != "" && !p.IsDeleted() && p.OwnerID == actor.ID
}

// CanManageOwnerProducts 级联批量操作只开放给管理员
func CanManageOwnerProducts(actor auth.Actor) bool {
	return actor.ID != "" && actor.Role == domain.RoleAdmin
}
