package routes

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/font-hub/font-hub/internal/catalog"
)

// RegisterCatalogRoutes 暴露 /-/catalogs 诊断接口，列出可用的字体目录及当前生效的目录地址。
func RegisterCatalogRoutes(app *fiber.App, activeProvider, activeURL string) {
	if app == nil {
		return
	}

	app.Get("/-/catalogs", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"providers": encodeProviders(catalog.Providers(), activeProvider),
			"active": fiber.Map{
				"provider": activeProvider,
				"base_url": activeURL,
			},
		})
	})

	app.Get("/-/catalogs/:key", func(c fiber.Ctx) error {
		key := strings.ToLower(strings.TrimSpace(c.Params("key")))
		if key == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "catalog_key_required"})
		}
		provider, ok := catalog.ResolveProvider(key)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "catalog_not_found"})
		}
		return c.JSON(encodeProvider(provider, activeProvider))
	})
}

type providerPayload struct {
	Key         string   `json:"key"`
	Description string   `json:"description"`
	BaseURL     string   `json:"base_url"`
	Hosts       []string `json:"hosts"`
	Active      bool     `json:"active"`
}

func encodeProviders(providers []catalog.Provider, active string) []providerPayload {
	result := make([]providerPayload, 0, len(providers))
	for _, p := range providers {
		result = append(result, encodeProvider(p, active))
	}
	return result
}

func encodeProvider(p catalog.Provider, active string) providerPayload {
	return providerPayload{
		Key:         p.Key,
		Description: p.Description,
		BaseURL:     p.BaseURL,
		Hosts:       append([]string(nil), p.Hosts...),
		Active:      strings.EqualFold(p.Key, active),
	}
}
