package router

import (
	"sort"
	"sync"

	"github.com/gin-gonic/gin"

	"product-user-services/internal/core/auth"
	"product-user-services/internal/domain"
	mdw "product-user-services/internal/transport/http/middleware"
)

// 模块可实现其中任意几个接口，分别挂到不同鉴权级别的分组
type PublicModule interface{ MountPublic(*gin.RouterGroup) }
type AuthModule interface{ MountAuth(*gin.RouterGroup) }
type AdminModule interface{ MountAdmin(*gin.RouterGroup) }

// 可选：实现该接口可控制挂载顺序（数值越小越先挂），不实现默认 100
type prioritizer interface{ Priority() int }

// Registry 每个 engine 一份，避免全局状态在测试间串
type Registry struct {
	mu   sync.RWMutex
	mods []any
}

func NewRegistry(mods ...any) *Registry {
	r := &Registry{}
	for _, m := range mods {
		r.Register(m)
	}
	return r
}

func (r *Registry) Register(mod any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mods = append(r.mods, mod)
}

// Mount 在 api 下建出 public / 登录 / admin 三个分组并挂载所有模块
func (r *Registry) Mount(api *gin.RouterGroup, j *auth.JWTer) {
	r.mu.RLock()
	mods := append([]any(nil), r.mods...)
	r.mu.RUnlock()

	sort.SliceStable(mods, func(i, k int) bool {
		return priorityOf(mods[i]) < priorityOf(mods[k])
	})

	authed := api.Group("", mdw.AuthJWT(j))
	admin := api.Group("", mdw.AuthJWT(j, domain.RoleAdmin))
	for _, m := range mods {
		if pm, ok := m.(PublicModule); ok {
			pm.MountPublic(api)
		}
		if am, ok := m.(AuthModule); ok {
			am.MountAuth(authed)
		}
		if ad, ok := m.(AdminModule); ok {
			ad.MountAdmin(admin)
		}
	}
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}
