package requests

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"jan-server/services/session-api/internal/domain/conversation"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags used by request DTOs on gin's validator.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		err = v.RegisterValidation("model_id", validateModelID)
	})
	return err
}

func validateModelID(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if strings.TrimSpace(raw) == "" {
		return true
	}
	_, err := conversation.ParseModelID(raw)
	return err == nil
}
