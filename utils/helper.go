package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var (
	ErrLockNotObtained = errors.New("resource is busy, try again")
	ErrLockUnavailable = errors.New("lock service unavailable")
	ErrInvalidPhone    = errors.New("phone number is not valid")
)

const orderLockTTL = 30 * time.Second

// AmountScale is the number of decimal places quantity and money columns keep.
const AmountScale = 4

// FitsScale reports whether d can be stored without rounding.
func FitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountScale))
}

// region used when a phone number has no international prefix
func phoneRegion() string {
	if v := strings.TrimSpace(os.Getenv("PHONE_DEFAULT_REGION")); v != "" {
		return strings.ToUpper(v)
	}
	return "BR"
}

// FormatPhoneNumber returns the E164 form of a valid number.
func FormatPhoneNumber(phoneNumber string) (string, error) {
	p, err := libphonenumber.Parse(phoneNumber, phoneRegion())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", ErrInvalidPhone
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the shared validator. decimal.Decimal fields are validated as numbers,
// so `validate:"gt=0"` works on quantities and prices. `scale4` rejects decimals with more
// places than the columns store.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		_ = validate.RegisterValidation("scale4", validateScale)
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// validateScale reads the original decimal from the parent struct; the field value
// itself has already been converted to float64.
func validateScale(fl validator.FieldLevel) bool {
	parent := reflect.Indirect(fl.Parent())
	if parent.Kind() != reflect.Struct {
		return true
	}
	field := parent.FieldByName(fl.StructFieldName())
	if !field.IsValid() {
		return true
	}
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return true
		}
		field = field.Elem()
	}
	d, ok := field.Interface().(decimal.Decimal)
	if !ok {
		return true
	}
	return FitsScale(d)
}

func ValidateStruct(input interface{}) error {
	return GetValidator().Struct(input)
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["error"] = err.Error()
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Namespace()] = ve.Tag()
	}
	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// OrderLock serializes mutating operations on one order across instances.
// The returned release func must always be called. When Redis is not connected the
// lock degrades to a no-op and the order row lock taken inside the transaction is what serializes.
func OrderLock(ctx context.Context, orderId int, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		config.LogWarn(logger, moduleName, functionName, "redis lock not initialized; relying on row lock", orderId)
		return func() {}, nil
	}
	lockKey := fmt.Sprintf("order:%d", orderId)
	lock, err := locker.Obtain(ctx, lockKey, orderLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "could not obtain order lock", orderId, err)
		return nil, ErrLockNotObtained
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "error obtaining order lock", orderId, err)
		return nil, fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
	return func() {
		// release with a fresh context so a cancelled request still frees the key
		_ = lock.Release(context.Background())
	}, nil
}
