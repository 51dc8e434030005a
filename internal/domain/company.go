package domain

import (
	"fmt"
	"strings"
	"time"
)

// CompanyInfo is the single record describing the operating airline.
type CompanyInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate requires every descriptive field.
func (c *CompanyInfo) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", c.Name},
		{"description", c.Description},
		{"address", c.Address},
		{"phone", c.Phone},
		{"email", c.Email},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}
