package testinfra

import (
	"ringiflow/session"

	"github.com/fundwit/go-commons/types"
)

// BuildSecCtx build security context
func BuildSecCtx(uid types.ID, name string) *session.Context {
	return &session.Context{
		Token:    "test-token-" + name,
		Identity: session.Identity{ID: uid, Name: name, Nickname: name},
	}
}
