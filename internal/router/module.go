package router

import "github.com/gin-gonic/gin"

// Module mounts one feature's routes on the group it is given.
type Module interface {
	Register(rg *gin.RouterGroup)
}

// ModuleFunc adapts a plain route-registering function to Module.
type ModuleFunc func(rg *gin.RouterGroup)

func (f ModuleFunc) Register(rg *gin.RouterGroup) { f(rg) }
