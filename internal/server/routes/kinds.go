package routes

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/asset-hub/asset-hub/internal/assetkind"
)

// RegisterKindRoutes 暴露 /-/kinds 诊断接口，供运维查询允许的资产类型。
func RegisterKindRoutes(app *fiber.App, registry *assetkind.Registry) {
	if app == nil || registry == nil {
		return
	}

	app.Get("/-/kinds", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"kinds": encodeKinds(registry.List()),
		})
	})

	app.Get("/-/kinds/:key", func(c fiber.Ctx) error {
		key := strings.ToLower(strings.TrimSpace(c.Params("key")))
		if key == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "kind_key_required"})
		}
		kind, ok := registry.Resolve(key)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "kind_not_found"})
		}
		return c.JSON(encodeKind(kind))
	})
}

type kindPayload struct {
	Key         string   `json:"key"`
	Description string   `json:"description"`
	Extensions  []string `json:"extensions"`
	ContentType string   `json:"content_type"`
}

func encodeKinds(kinds []assetkind.Kind) []kindPayload {
	if len(kinds) == 0 {
		return nil
	}
	result := make([]kindPayload, 0, len(kinds))
	for _, kind := range kinds {
		result = append(result, encodeKind(kind))
	}
	return result
}

func encodeKind(kind assetkind.Kind) kindPayload {
	return kindPayload{
		Key:         kind.Key,
		Description: kind.Description,
		Extensions:  append([]string(nil), kind.Extensions...),
		ContentType: kind.ContentType,
	}
}
