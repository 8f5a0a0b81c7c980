package models

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatusNotArrived is the initial status of every imported order; arrival
// tracking happens downstream of the importer.
const StatusNotArrived = "Not Arrived"

type Order struct {
	OrderID      string  `gorm:"column:order_id;primaryKey;size:12" json:"order_id"`
	CustomerName *string `gorm:"size:255" json:"customer_name"`
	CustomerID   *int    `json:"customer_id"`
	PhoneNumber  *string `gorm:"size:32" json:"phone_number"`
	OrderDate    string  `gorm:"size:10" json:"order_date"`
	Status       string  `gorm:"size:32;default:'Not Arrived'" json:"status"`
	Items        []Item  `gorm:"foreignKey:OrderID;references:OrderID" json:"items,omitempty"`
}

type Item struct {
	OrderID     string  `gorm:"column:order_id;index;size:12" json:"order_id"`
	ProductCode string  `gorm:"size:255" json:"product_code"`
	ProductName *string `gorm:"size:255" json:"product_name"`
	Quantity    int     `json:"quantity"`
}

// MigrateTable Migrate tables
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(&Order{}, &Item{})
}

type SaveOptions struct {
	// ReplaceItems deletes each imported order's existing item rows inside
	// the batch transaction before inserting, making reruns idempotent for
	// the items table too. Off by default: items are plain appends, and
	// reprocessing a file duplicates them (orders are replace-by-key either
	// way).
	ReplaceItems bool
}

// SaveImportBatch writes one file's parse output as a single transaction:
// both tables or neither.
func SaveImportBatch(db *gorm.DB, orders []Order, items []Item, opts SaveOptions) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for i := range orders {
			if orders[i].Status == "" {
				orders[i].Status = StatusNotArrived
			}
		}
		if len(orders) > 0 {
			// Replace-by-key: a conflicting order_id overwrites the prior
			// record entirely, status included.
			err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&orders).Error
			if err != nil {
				return fmt.Errorf("could not upsert orders: %v", err)
			}
		}
		if opts.ReplaceItems && len(orders) > 0 {
			orderIds := make([]string, 0, len(orders))
			for _, o := range orders {
				orderIds = append(orderIds, o.OrderID)
			}
			err := tx.Where("order_id IN ?", orderIds).Delete(&Item{}).Error
			if err != nil {
				return fmt.Errorf("could not clear existing items: %v", err)
			}
		}
		if len(items) > 0 {
			err := tx.Create(&items).Error
			if err != nil {
				return fmt.Errorf("could not insert items: %v", err)
			}
		}
		return nil
	})
}
