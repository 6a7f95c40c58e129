package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/font-hub/font-hub/internal/font"
	"github.com/font-hub/font-hub/internal/manager"
	"github.com/font-hub/font-hub/internal/server"
	"github.com/font-hub/font-hub/internal/storage"
)

// FontService 是 HTTP 层依赖的缓存管理能力，由 *manager.Manager 实现。
type FontService interface {
	List() []font.Record
	Get(family string) (font.Record, bool)
	Lookup(family string, weight int, style font.Style) (string, bool)
	CacheFromCatalog(ctx context.Context, reference string) (*manager.Outcome, error)
	CacheFromLocal(ctx context.Context, folder, family string) (*manager.Outcome, error)
	Delete(ctx context.Context, family string) error
	InFlight() []string
}

type catalogRequest struct {
	Reference string `json:"reference"`
}

type localRequest struct {
	Folder string `json:"folder"`
	Family string `json:"family"`
}

type lookupPayload struct {
	Family string     `json:"family"`
	Weight int        `json:"weight"`
	Style  font.Style `json:"style"`
	Path   string     `json:"path"`
	URL    string     `json:"url"`
}

// RegisterFontRoutes 暴露 /-/fonts 管理接口与 /files 静态字体访问。
func RegisterFontRoutes(app *fiber.App, service FontService, store storage.Store, logger *logrus.Logger) {
	if app == nil || service == nil || store == nil {
		return
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &fontHandler{service: service, store: store, logger: logger}

	app.Get("/-/fonts", h.list)
	app.Post("/-/fonts/catalog", h.cacheCatalog)
	app.Post("/-/fonts/local", h.cacheLocal)
	app.Get("/-/fonts/:family", h.get)
	app.Get("/-/fonts/:family/lookup", h.lookup)
	app.Delete("/-/fonts/:family", h.delete)
	app.Get("/files/:family/:weight/:style", h.serveFile)
}

type fontHandler struct {
	service FontService
	store   storage.Store
	logger  *logrus.Logger
}

func (h *fontHandler) list(c fiber.Ctx) error {
	fonts := h.service.List()
	if fonts == nil {
		fonts = []font.Record{}
	}
	inFlight := h.service.InFlight()
	if inFlight == nil {
		inFlight = []string{}
	}
	return c.JSON(fiber.Map{
		"fonts":     fonts,
		"in_flight": inFlight,
	})
}

func (h *fontHandler) get(c fiber.Ctx) error {
	family := familyParam(c)
	record, ok := h.service.Get(family)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "font_not_found"})
	}
	return c.JSON(record)
}

func (h *fontHandler) lookup(c fiber.Ctx) error {
	family := familyParam(c)
	weight, style, ok := parseVariantQuery(c.Query("weight", "400"), c.Query("style", "normal"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_variant"})
	}
	path, found := h.service.Lookup(family, weight, style)
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "font_not_found"})
	}
	return c.JSON(lookupPayload{
		Family: family,
		Weight: weight,
		Style:  style,
		Path:   path,
		URL:    fileURL(family, weight, style),
	})
}

func (h *fontHandler) cacheCatalog(c fiber.Ctx) error {
	var req catalogRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || strings.TrimSpace(req.Reference) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reference_required"})
	}
	outcome, err := h.service.CacheFromCatalog(requestContext(c), req.Reference)
	return h.renderOutcome(c, outcome, err)
}

func (h *fontHandler) cacheLocal(c fiber.Ctx) error {
	var req localRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || strings.TrimSpace(req.Folder) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "folder_required"})
	}
	outcome, err := h.service.CacheFromLocal(requestContext(c), req.Folder, req.Family)
	return h.renderOutcome(c, outcome, err)
}

func (h *fontHandler) delete(c fiber.Ctx) error {
	family := familyParam(c)
	if err := h.service.Delete(requestContext(c), family); err != nil {
		status, code := classifyError(err)
		return c.Status(status).JSON(fiber.Map{"error": code, "message": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// serveFile 按 weight/style 查找本地文件并直接输出，不会触发下载。
func (h *fontHandler) serveFile(c fiber.Ctx) error {
	family := familyParam(c)
	weight, style, ok := parseVariantQuery(c.Params("weight"), c.Params("style"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_variant"})
	}
	path, found := h.service.Lookup(family, weight, style)
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "font_not_found"})
	}

	result, err := h.store.Open(requestContext(c), path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "font_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "filesystem_failed"})
	}
	defer result.Reader.Close()

	if format, ok := font.FormatFromExtension(filepath.Base(path)); ok {
		c.Set(fiber.HeaderContentType, format.ContentType())
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	if result.Entry.SizeBytes > 0 {
		c.Response().Header.SetContentLength(int(result.Entry.SizeBytes))
	}
	c.Status(fiber.StatusOK)
	if c.Method() == http.MethodHead {
		return nil
	}
	if _, err := io.Copy(c.Response().BodyWriter(), result.Reader); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("read font failed: %v", err))
	}
	return nil
}

// renderOutcome 成功（含部分失败）返回 200；失败时附带阶段与已收集的结果。
func (h *fontHandler) renderOutcome(c fiber.Ctx, outcome *manager.Outcome, err error) error {
	if err == nil {
		return c.JSON(outcome)
	}
	status, code := classifyError(err)
	payload := fiber.Map{
		"error":   code,
		"message": err.Error(),
	}
	var wfErr *manager.WorkflowError
	if errors.As(err, &wfErr) {
		payload["stage"] = wfErr.Stage
	}
	if outcome != nil {
		payload["outcome"] = outcome
	}
	h.logger.WithFields(logrus.Fields{
		"action":     "cache_request",
		"request_id": server.RequestID(c),
		"status":     status,
		"error":      err.Error(),
	}).Warn("cache_request_failed")
	return c.Status(status).JSON(payload)
}

// classifyError 把领域错误映射为 HTTP 状态与错误码。
func classifyError(err error) (int, string) {
	var (
		netErr   *font.NetworkError
		parseErr *font.ParseError
		fsErr    *font.FilesystemError
	)
	switch {
	case errors.Is(err, font.ErrInvalidReference):
		return fiber.StatusBadRequest, "invalid_reference"
	case errors.Is(err, font.ErrInFlight):
		return fiber.StatusConflict, "in_flight"
	case errors.Is(err, font.ErrNotFound):
		return fiber.StatusNotFound, "font_not_found"
	case errors.Is(err, font.ErrNoVariants):
		return fiber.StatusUnprocessableEntity, "no_variants"
	case errors.Is(err, font.ErrAllVariantsFailed):
		return fiber.StatusBadGateway, "all_variants_failed"
	case errors.As(err, &parseErr):
		return fiber.StatusBadGateway, "parse_failed"
	case errors.As(err, &netErr):
		if netErr.Kind == font.NetworkTimeout {
			return fiber.StatusGatewayTimeout, "upstream_timeout"
		}
		return fiber.StatusBadGateway, "upstream_failed"
	case errors.As(err, &fsErr):
		return fiber.StatusInternalServerError, "filesystem_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusServiceUnavailable, "canceled"
	}
	return fiber.StatusInternalServerError, "internal_error"
}

func familyParam(c fiber.Ctx) string {
	raw := c.Params("family")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return strings.TrimSpace(raw)
}

func parseVariantQuery(rawWeight, rawStyle string) (int, font.Style, bool) {
	weight, err := strconv.Atoi(strings.TrimSpace(rawWeight))
	if err != nil || !font.ValidWeight(weight) {
		return 0, "", false
	}
	style, ok := font.ParseStyle(rawStyle)
	if !ok {
		return 0, "", false
	}
	return weight, style, true
}

func fileURL(family string, weight int, style font.Style) string {
	return fmt.Sprintf("/files/%s/%d/%s", url.PathEscape(family), weight, style)
}

func requestContext(c fiber.Ctx) context.Context {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
