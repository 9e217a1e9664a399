package utils

import (
	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
)

// Captcha guards code issuance with a digit captcha.
type Captcha struct {
	store base64Captcha.Store
}

// NewCaptcha keeps answers in Redis when available so captcha works behind load balancers.
func NewCaptcha(rc *redis.Client) *Captcha {
	if rc != nil {
		return &Captcha{store: NewRedisCaptchaStore(rc, 0)}
	}
	return &Captcha{store: base64Captcha.DefaultMemStore}
}

// Generate creates a captcha and returns (id, dataURI) for frontend to display.
func (c *Captcha) Generate() (string, string, error) {
	driver := base64Captcha.NewDriverDigit(40, 120, 5, 0.7, 80)
	id, b64, _, err := base64Captcha.NewCaptcha(driver, c.store).Generate()
	return id, b64, err
}

// Verify checks the answer and consumes the captcha.
func (c *Captcha) Verify(id, answer string) bool {
	if id == "" || answer == "" {
		return false
	}
	return c.store.Verify(id, answer, true)
}
