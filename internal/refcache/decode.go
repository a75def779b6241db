package refcache

import (
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
)

// decimalDecodeHook lets viper's Unmarshal populate decimal.Decimal
// fields from YAML scalars (numbers or strings) without losing
// precision to an intermediate float64, the same concern that drove
// this repo to decimal.Decimal for prices and quantities everywhere else.
func decimalDecodeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(decimal.Decimal{}) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return data, nil
	}
}

var _ mapstructure.DecodeHookFuncType = decimalDecodeHook
