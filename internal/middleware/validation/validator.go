package validation

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Staff-authored resolutions are shown to customers, so markup in them is
// refused. Customer questions are accepted as typed and only ever leave the
// service JSON-encoded.
var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxQuestionLength   int
	MaxResolutionLength int
	MaxFlagLength       int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// AskRequest is the body of a question submission, as JSON or form data.
type AskRequest struct {
	Question string `json:"question" form:"question"`
	Email    string `json:"email" form:"email"`
}

type ResolveRequest struct {
	Resolution string `json:"resolution" form:"resolution"`
	Flag       string `json:"flag" form:"flag"`
}

const (
	askLocal     = "ask_request"
	resolveLocal = "resolve_request"
)

func (cfg *Config) applyDefaults() {
	if cfg.MaxQuestionLength == 0 {
		cfg.MaxQuestionLength = 5000
	}
	if cfg.MaxResolutionLength == 0 {
		cfg.MaxResolutionLength = 10000
	}
	if cfg.MaxFlagLength == 0 {
		cfg.MaxFlagLength = 64
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
}

// ContentType rejects POST and PUT bodies of an unexpected type.
func ContentType(cfg Config) fiber.Handler {
	cfg.applyDefaults()

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType == "" {
			return c.Next()
		}
		for _, allowed := range cfg.AllowedContentTypes {
			if strings.Contains(contentType, allowed) {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": "Unsupported content type",
		})
	}
}

// Ask parses and checks a question submission. An empty question is
// accepted: it scores zero against the corpus and is escalated.
func Ask(cfg Config) fiber.Handler {
	cfg.applyDefaults()

	return func(c *fiber.Ctx) error {
		var req AskRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		if msg, ok := checkAsk(cfg, &req); !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": msg,
			})
		}

		c.Locals(askLocal, req)
		return c.Next()
	}
}

// CheckAsk sanitizes req in place. When the request is rejected it returns
// the client-facing reason and false.
func CheckAsk(cfg Config, req *AskRequest) (string, bool) {
	cfg.applyDefaults()
	return checkAsk(cfg, req)
}

func checkAsk(cfg Config, req *AskRequest) (string, bool) {
	req.Question = sanitizeString(req.Question)
	req.Email = sanitizeString(req.Email)

	if len(req.Question) > cfg.MaxQuestionLength {
		return "Question exceeds maximum length", false
	}
	if !isValidEmail(req.Email) {
		return "A valid email is required", false
	}
	return "", true
}

// Resolve parses and checks a staff resolution submission.
func Resolve(cfg Config) fiber.Handler {
	cfg.applyDefaults()

	return func(c *fiber.Ctx) error {
		var req ResolveRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		req.Resolution = sanitizeString(req.Resolution)
		req.Flag = sanitizeString(req.Flag)

		if req.Resolution == "" || req.Flag == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Resolution and flag are required",
			})
		}
		if len(req.Resolution) > cfg.MaxResolutionLength || len(req.Flag) > cfg.MaxFlagLength {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Resolution or flag exceeds maximum length",
			})
		}
		if containsXSS(req.Resolution) || containsXSS(req.Flag) {
			cfg.Logger.Warn("Potential XSS attempt", zap.String("ip", c.IP()))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid resolution content",
			})
		}

		c.Locals(resolveLocal, req)
		return c.Next()
	}
}

// AskFrom returns the request stored by Ask.
func AskFrom(c *fiber.Ctx) (AskRequest, bool) {
	req, ok := c.Locals(askLocal).(AskRequest)
	return req, ok
}

// ResolveFrom returns the request stored by Resolve.
func ResolveFrom(c *fiber.Ctx) (ResolveRequest, bool) {
	req, ok := c.Locals(resolveLocal).(ResolveRequest)
	return req, ok
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}

// sanitizeString also copies the value out of fiber's reusable request
// buffer.
func sanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.Clone(input)
}

func isValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}
