package bulletin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/bulletin/views"
)

func (a *App) handleHome(c echo.Context) error {
	return Render(c, views.Home(a.SiteViewConfig(), views.HomeData{
		Surface: a.Hub.Surface(),
		LiveURL: "/live/",
	}))
}

func (a *App) handleLive(c echo.Context) error {
	a.Hub.ServeWS(c.Response(), c.Request())
	return nil
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

func (a *App) handleRobots(c echo.Context) error {
	return c.File(a.staticDir + "/robots.txt")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, views.NotFound(a.SiteViewConfig()))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.log.WithError(err).WithField("uri", c.Request().RequestURI).Error("server error")
		_ = RenderStatus(c, code, views.ServerError(a.SiteViewConfig()))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
