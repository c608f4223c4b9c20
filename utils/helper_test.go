package utils

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func TestJwtRoundTrip(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")
	token, err := JwtGenerate(7, "Ana", "HUB", 3)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	claim, err := JwtValidate(token)
	if err != nil {
		t.Fatalf("JwtValidate: %v", err)
	}
	if claim.ID != 7 || claim.Name != "Ana" || claim.Role != "HUB" || claim.UnitId != 3 {
		t.Fatalf("unexpected claim %+v", claim)
	}

	t.Setenv("API_SECRET", "other-secret")
	if _, err := JwtValidate(token); err == nil {
		t.Fatalf("token signed with another secret should fail")
	}
}

func TestFormatPhoneNumber(t *testing.T) {
	t.Setenv("PHONE_DEFAULT_REGION", "")
	got, err := FormatPhoneNumber("11987654321")
	if err != nil {
		t.Fatalf("FormatPhoneNumber: %v", err)
	}
	if got != "+5511987654321" {
		t.Fatalf("unexpected E164 %s", got)
	}
	for _, bad := range []string{"123", "not a phone"} {
		if _, err := FormatPhoneNumber(bad); !errors.Is(err, ErrInvalidPhone) {
			t.Fatalf("%q: expected ErrInvalidPhone, got %v", bad, err)
		}
	}
}

type quantityInput struct {
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
	Name     string          `json:"name" validate:"required"`
}

func TestValidateStruct_Decimals(t *testing.T) {
	if err := ValidateStruct(&quantityInput{Quantity: decimal.RequireFromString("0.5"), Name: "x"}); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	err := ValidateStruct(&quantityInput{Quantity: decimal.Zero})
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	fields := ProcessValidationErrors(err)
	if fields["quantityInput.quantity"] != "gt" || fields["quantityInput.name"] != "required" {
		t.Fatalf("unexpected field errors %v", fields)
	}
}

type scaledInput struct {
	Quantity decimal.Decimal  `json:"quantity" validate:"gt=0,scale4"`
	Price    *decimal.Decimal `json:"price" validate:"omitempty,scale4"`
}

func TestValidateStruct_Scale(t *testing.T) {
	price := decimal.RequireFromString("2.5000")
	ok := []scaledInput{
		{Quantity: decimal.RequireFromString("0.0001")},
		{Quantity: decimal.RequireFromString("1.50000000"), Price: &price},
		{Quantity: decimal.NewFromInt(30)},
	}
	for _, input := range ok {
		if err := ValidateStruct(&input); err != nil {
			t.Fatalf("%s: unexpected error %v", input.Quantity, err)
		}
	}

	err := ValidateStruct(&scaledInput{Quantity: decimal.RequireFromString("0.00001")})
	if fields := ProcessValidationErrors(err); fields["scaledInput.quantity"] != "scale4" {
		t.Fatalf("expected scale4 on quantity, got %v", fields)
	}
	fine := decimal.RequireFromString("29.99999")
	err = ValidateStruct(&scaledInput{Quantity: decimal.NewFromInt(1), Price: &fine})
	if fields := ProcessValidationErrors(err); fields["scaledInput.price"] != "scale4" {
		t.Fatalf("expected scale4 on price, got %v", fields)
	}
}

func TestFitsScale(t *testing.T) {
	cases := map[string]bool{"12.3456": true, "12.34560": true, "12.34567": false, "-0.00001": false, "0": true}
	for raw, want := range cases {
		if got := FitsScale(decimal.RequireFromString(raw)); got != want {
			t.Fatalf("%s: expected %v, got %v", raw, want, got)
		}
	}
}

func TestJwtSecretRequiredInProduction(t *testing.T) {
	t.Setenv("API_SECRET", "")
	t.Setenv("GO_ENV", "development")
	if err := CheckJwtSecret(); err != nil {
		t.Fatalf("development should fall back to the dev secret: %v", err)
	}
	forged, err := JwtGenerate(1, "root", "UNRESTRICTED", 0)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	t.Setenv("GO_ENV", "production")
	if err := CheckJwtSecret(); !errors.Is(err, ErrJwtSecretMissing) {
		t.Fatalf("expected ErrJwtSecretMissing, got %v", err)
	}
	if _, err := JwtValidate(forged); !errors.Is(err, ErrJwtSecretMissing) {
		t.Fatalf("tokens must be refused without a secret, got %v", err)
	}
	if _, err := JwtGenerate(1, "root", "UNRESTRICTED", 0); !errors.Is(err, ErrJwtSecretMissing) {
		t.Fatalf("tokens must not be issued without a secret, got %v", err)
	}
}

func TestOrderLockRedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	config.SetRedis(client)
	t.Cleanup(func() {
		config.SetRedis(nil)
		_ = client.Close()
	})

	release, err := OrderLock(context.Background(), 42, "utils", "TestOrderLockRedisDown")
	if release != nil {
		t.Fatalf("no release func expected on failure")
	}
	if !errors.Is(err, ErrLockUnavailable) {
		t.Fatalf("expected ErrLockUnavailable, got %v", err)
	}
	if errors.Is(err, ErrLockNotObtained) {
		t.Fatalf("a redis outage is not contention")
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestSaveObjectLocal(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORAGE_PROVIDER", "local")
	t.Setenv("LOCAL_STORAGE_DIR", dir)

	if err := SaveObject(context.Background(), "receipts/a.pdf", "application/pdf", strings.NewReader("%PDF-1.4")); err != nil {
		t.Fatalf("SaveObject: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "receipts", "a.pdf"))
	if err != nil || string(data) != "%PDF-1.4" {
		t.Fatalf("stored object mismatch: %q %v", data, err)
	}
	if err := SaveObject(context.Background(), "../escape.pdf", "application/pdf", strings.NewReader("x")); err == nil {
		t.Fatalf("object names with .. must be refused")
	}
}
