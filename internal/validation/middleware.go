package validation

import (
	"github.com/gofiber/fiber/v2"
)

type inputKey struct{}

// Middleware decodes the request, runs chain and answers 400 with every
// failure. On success the decoded input is stored for the next handler.
func (v *Validator) Middleware(chain Chain) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body, err := decodeBody(c)
		if err != nil {
			return err
		}

		in := Input{Params: c.AllParams(), Body: body}
		if errs := chain.Run(in); len(errs) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"errors": errs,
			})
		}

		c.Locals(inputKey{}, in)
		return c.Next()
	}
}

// FromContext returns the input stored by Middleware.
func FromContext(c *fiber.Ctx) Input {
	in, _ := c.Locals(inputKey{}).(Input)
	return in
}

// decodeBody reads a JSON object body. Bodies of any other content type are
// treated as empty.
func decodeBody(c *fiber.Ctx) (map[string]any, error) {
	body := map[string]any{}
	if len(c.Body()) == 0 || !c.Is("json") {
		return body, nil
	}
	if err := c.BodyParser(&body); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "El cuerpo de la solicitud no es un JSON válido")
	}
	return body, nil
}
