package middlewares

import (
	"context"
	"reflect"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/models"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders batch the lookups order and stock responses make per row.
type Loaders struct {
	unitLoader             *dataloader.Loader[int, *models.SupplyingUnit]
	productLoader          *dataloader.Loader[int, *models.Product]
	orderLineLoader        *dataloader.Loader[int, []*models.OrderLine]
	orderSettlementsLoader *dataloader.Loader[int, []*models.Settlement]
}

func NewLoaders(conn *gorm.DB) *Loaders {
	unitReader := &unitReader{db: conn}
	productReader := &productReader{db: conn}
	orderLineReader := &orderLineReader{db: conn}
	settlementReader := &settlementReader{db: conn}

	return &Loaders{
		unitLoader:             dataloader.NewBatchedLoader(unitReader.getUnits, dataloader.WithWait[int, *models.SupplyingUnit](time.Millisecond)),
		productLoader:          dataloader.NewBatchedLoader(productReader.getProducts, dataloader.WithWait[int, *models.Product](time.Millisecond)),
		orderLineLoader:        dataloader.NewBatchedLoader(orderLineReader.getOrderLines, dataloader.WithWait[int, []*models.OrderLine](time.Millisecond)),
		orderSettlementsLoader: dataloader.NewBatchedLoader(settlementReader.getOrderSettlements, dataloader.WithWait[int, []*models.Settlement](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// For returns the request's loaders. Callers outside a request get a fresh set.
func For(ctx context.Context) *Loaders {
	if loaders, ok := ctx.Value(loadersKey).(*Loaders); ok {
		return loaders
	}
	return NewLoaders(config.GetDB())
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// turns results from db into dataloader results
// (T must be a struct)
func generateLoaderResults[T models.Data](results []T, ids []int) []*dataloader.Result[*T] {
	resultMap := make(map[int]T)
	var resultZero T
	resultMap[0] = resultZero.GetDefault(0).(T)
	for _, result := range results {
		resultMap[result.GetId()] = result
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		data := resultMap[id]
		if reflect.ValueOf(data).IsZero() {
			data = data.GetDefault(id).(T)
		}
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: &data})
	}
	return loaderResults
}

// each id has many related results
func generateLoaderArrayResults[T models.RelatedData](results []T, referenceIds []int) (loaderResults []*dataloader.Result[[]*T]) {
	resultMap := make(map[int][]*T)
	for _, result := range results {
		item := result
		resultMap[result.GetReferenceId()] = append(resultMap[result.GetReferenceId()], &item)
	}
	for _, id := range referenceIds {
		loaderResults = append(loaderResults, &dataloader.Result[[]*T]{Data: resultMap[id]})
	}
	return loaderResults
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
