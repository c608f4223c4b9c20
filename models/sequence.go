package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const orderNumberPrefix = "PED"

// SequenceCounter is one monotonically increasing counter per key.
type SequenceCounter struct {
	Key       string    `gorm:"column:counter_key;primaryKey;size:64" json:"key"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NextSequence returns the next value for key. It must run inside tx; the counter row stays
// locked until tx ends, so concurrent callers never observe the same value.
func NextSequence(tx *gorm.DB, key string) (int64, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&SequenceCounter{Key: key}).Error; err != nil {
		return 0, wrapStorageErr(err)
	}

	var counter SequenceCounter
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("counter_key = ?", key).
		First(&counter).Error; err != nil {
		return 0, wrapStorageErr(err)
	}

	next := counter.Value + 1
	if err := tx.Model(&SequenceCounter{}).
		Where("counter_key = ?", key).
		Update("value", next).Error; err != nil {
		return 0, wrapStorageErr(err)
	}

	config.GetMetrics().SequenceIssued.WithLabelValues(sequenceFamily(key)).Inc()
	return next, nil
}

func sequenceFamily(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

func orderSequenceKey(date time.Time) string {
	return "order:" + date.Format("20060102")
}

// FormatOrderNumber renders PED-YYYYMMDD-NNNN. Values past 9999 widen instead of wrapping.
func FormatOrderNumber(date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", orderNumberPrefix, date.Format("20060102"), seq)
}

// GenerateOrderNumber mints the next order number for the calendar day of date (UTC).
func GenerateOrderNumber(tx *gorm.DB, date time.Time) (string, error) {
	day := date.UTC()
	seq, err := NextSequence(tx, orderSequenceKey(day))
	if err != nil {
		return "", err
	}
	return FormatOrderNumber(day, seq), nil
}
