package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/mmdatafocus/distribution_backend/config"
)

// JwtCustomClaim is issued by the identity service. UnitId is 0 for unrestricted actors.
type JwtCustomClaim struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	UnitId int    `json:"unit_id"`
	jwt.StandardClaims
}

// ErrJwtSecretMissing is returned in production when API_SECRET is not set.
var ErrJwtSecretMissing = errors.New("API_SECRET is not set")

const devJwtSecret = "distribution-dev-secret"

// CheckJwtSecret fails in production when no signing secret is configured.
func CheckJwtSecret() error {
	_, err := getJwtSecret()
	return err
}

// getJwtSecret falls back to a fixed secret outside production only.
func getJwtSecret() ([]byte, error) {
	secret := os.Getenv("API_SECRET")
	if secret != "" {
		return []byte(secret), nil
	}
	if config.IsProduction() {
		return nil, ErrJwtSecretMissing
	}
	return []byte(devJwtSecret), nil
}

func tokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 12
	}
	return time.Hour * time.Duration(hours)
}

// JwtGenerate is used by tooling and tests; production tokens come from the identity service.
func JwtGenerate(userID int, name string, role string, unitId int) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		ID:     userID,
		Name:   name,
		Role:   role,
		UnitId: unitId,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(tokenLifespan()).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})
	secret, err := getJwtSecret()
	if err != nil {
		return "", err
	}
	return t.SignedString(secret)
}

func JwtValidate(token string) (*JwtCustomClaim, error) {
	secret, err := getJwtSecret()
	if err != nil {
		return nil, err
	}
	parsed, err := jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claim, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claim, nil
}
