package router

import (
	"github.com/labstack/echo/v4"
)

// RegisterProjects registers the project routes.  All of them require a
// valid access token; creation and membership changes are further limited
// by the policy.
func RegisterProjects(e *echo.Echo, d Deps) {
	g := e.Group(APIPrefix+"/projects", authenticated(d)...)
	g.POST("", d.Projects.Create)
	g.GET("", d.Projects.List)
	g.POST("/:id/members", d.Projects.AddMember)
}
