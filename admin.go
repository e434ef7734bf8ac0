package bulletin

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"

	"github.com/eringen/bulletin/content"
	"github.com/eringen/bulletin/syncer"
	"github.com/eringen/bulletin/views"
)

const (
	videoSavedMessage      = "Video saved. Refresh the main site to see the change."
	videoSavedLocalMessage = "Video saved on this server only; the backend could not be reached."
)

func videoResultMessage(res syncer.Result) string {
	if res.Synchronized() {
		return videoSavedMessage
	}
	return videoSavedLocalMessage
}

var (
	validate = validator.New()

	// Admin text is shown as plain text, so every tag is stripped.
	textPolicy = bluemonday.StrictPolicy()
)

type newsForm struct {
	Title       string `form:"title" validate:"required,max=200"`
	Description string `form:"description" validate:"required,max=5000"`
}

type galleryForm struct {
	Alt string `form:"alt" validate:"max=300"`
}

type videoURLForm struct {
	URL string `form:"url" validate:"required,url,max=2048"`
}

// cleanText strips markup and surrounding whitespace from admin input.
func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

func redirectAdmin(c echo.Context, msg string) error {
	target := "/admin/"
	if msg != "" {
		target += "?msg=" + url.QueryEscape(msg)
	}
	return c.Redirect(http.StatusSeeOther, target)
}

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, views.AdminLogin(a.SiteViewConfig(), false, CsrfToken(c)))
	}
	if !a.Realtime() {
		// a failed read leaves the working copy as loaded
		_ = a.Editor.Refresh(c.Request().Context())
	}
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		if err := setAdminSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	a.loginLimiter.Record(ip)
	return Render(c, views.AdminLogin(a.SiteViewConfig(), true, CsrfToken(c)))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleNewsAdd(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	var form newsForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	form.Title = cleanText(form.Title)
	form.Description = cleanText(form.Description)
	if err := validate.Struct(form); err != nil {
		return redirectAdmin(c, "Please enter both a title and a description.")
	}
	_, err := a.Editor.AddNews(c.Request().Context(), content.NewsItem{
		Title:       form.Title,
		Description: form.Description,
	})
	if errors.Is(err, syncer.ErrIncomplete) {
		return redirectAdmin(c, "Please enter both a title and a description.")
	}
	return redirectAdmin(c, "")
}

func (a *App) handleNewsDelete(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil || i < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid index")
	}
	a.Editor.RemoveNews(c.Request().Context(), i)
	return redirectAdmin(c, "")
}

func (a *App) handleGalleryAdd(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	file, err := c.FormFile("image")
	if err != nil {
		return redirectAdmin(c, "Please choose an image.")
	}
	if file.Size > maxUploadSize {
		return redirectAdmin(c, "Image too large (max 10MB).")
	}
	var form galleryForm
	form.Alt = cleanText(c.FormValue("alt"))
	if err := validate.Struct(form); err != nil {
		return redirectAdmin(c, "Alt text is too long.")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dataURI, err := imageDataURI(src)
	if err != nil {
		return redirectAdmin(c, "Invalid image: "+err.Error())
	}
	if _, err := a.Editor.AddGalleryImage(c.Request().Context(), content.GalleryItem{
		Src: dataURI,
		Alt: form.Alt,
	}); err != nil {
		return redirectAdmin(c, "Please choose an image.")
	}
	return redirectAdmin(c, "")
}

func (a *App) handleGalleryDelete(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil || i < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid index")
	}
	a.Editor.RemoveGalleryImage(c.Request().Context(), i)
	return redirectAdmin(c, "")
}

// handleVideoSave takes an uploaded file, which is embedded in the content,
// or else an embed URL.
func (a *App) handleVideoSave(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	ctx := c.Request().Context()

	if file, err := c.FormFile("video"); err == nil && file.Size > 0 {
		if file.Size > maxVideoSize {
			return redirectAdmin(c, fmt.Sprintf("Video too large (max %dMB).", maxVideoSize>>20))
		}
		src, err := file.Open()
		if err != nil {
			return err
		}
		defer src.Close()
		v, err := videoFromUpload(src, file.Header.Get(echo.HeaderContentType))
		if err != nil {
			return redirectAdmin(c, "Invalid video: "+err.Error())
		}
		res, err := a.Editor.SetVideo(ctx, v)
		if err != nil {
			return redirectAdmin(c, "Please choose a video.")
		}
		return redirectAdmin(c, videoResultMessage(res))
	}

	form := videoURLForm{URL: strings.TrimSpace(c.FormValue("url"))}
	if form.URL == "" {
		return redirectAdmin(c, "Please choose a video file or enter a URL.")
	}
	if err := validate.Struct(form); err != nil {
		return redirectAdmin(c, "Please enter a valid video URL.")
	}
	res, err := a.Editor.SetVideo(ctx, content.NewVideo(form.URL, content.VideoExternal))
	if err != nil {
		return redirectAdmin(c, "Please enter a valid video URL.")
	}
	return redirectAdmin(c, videoResultMessage(res))
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	return Render(c, views.AdminDashboard(a.SiteViewConfig(), views.DashboardData{
		Content:   a.Editor.Snapshot(),
		Status:    a.Sync.Status().String(),
		Realtime:  a.Realtime(),
		Message:   msg,
		CSRFToken: CsrfToken(c),
	}))
}
