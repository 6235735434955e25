package attendance

import (
	"math"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/attendr/core"
)

var (
	minPercentTag  = "minpercent"
	minPercentText = "must be greater than 0 and at most 100"

	kindTag  = "kind"
	kindText = "must be one of: attendance, timetable"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(minPercentTag, minPercentValidation)
	core.RegisterCustomTranslation(validate, translator, minPercentTag, minPercentText)

	_ = validate.RegisterValidation(kindTag, kindValidation)
	core.RegisterCustomTranslation(validate, translator, kindTag, kindText)
}

func minPercentValidation(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return !math.IsNaN(v) && v > 0 && v <= 100
}

func kindValidation(fl validator.FieldLevel) bool {
	return Kind(fl.Field().String()).Valid()
}
