package utils

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN_MINUTES"))
	if err != nil || lifespan <= 0 {
		lifespan = 10
	}
	return time.Duration(lifespan) * time.Minute
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

/* Redis */

func cacheKey[T any](id int) string {
	return GetTypeName[T]() + ":" + fmt.Sprint(id)
}

// store instance under Type:$id
func StoreRedis[T any](obj *T, id int) error {
	return config.SetRedisObject(cacheKey[T](id), obj, GetCacheLifespan())
}

// get from redis
// returns nil if does not exist
func RetrieveRedis[T any](id int) (*T, error) {
	var result T
	exists, err := config.GetRedisObject(cacheKey[T](id), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return &result, nil
}

// remove an instance, Type:$id
func RemoveRedisItem[T any](id int) error {
	return config.RemoveRedisKey(cacheKey[T](id))
}
