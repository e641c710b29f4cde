// Package sqlsource reads customers and orders straight from Postgres tables.
//
// Customers come from `<table>(id, name)`, orders from `<table>(id, customer_id)`.
package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/crm-gateway/internal/crm"
	"github.com/yungbote/crm-gateway/internal/gateway/config"
)

func Open(dsn string) (*gorm.DB, error) {
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return db, nil
}

type Customers struct {
	db    *gorm.DB
	table string
}

func NewCustomers(db *gorm.DB, table string) *Customers {
	if table == "" {
		table = "customers"
	}
	return &Customers{db: db, table: table}
}

func OpenCustomers(cfg config.SQLConfig) (*Customers, error) {
	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	return NewCustomers(db, cfg.Table), nil
}

var _ crm.CustomerSource = (*Customers)(nil)

func (c *Customers) StreamCustomers(ctx context.Context, onCustomer func(crm.Customer) error) error {
	rows, err := c.db.WithContext(ctx).Table(c.table).Select("id", "name").Order("id").Rows()
	if err != nil {
		return err
	}
	return scan(rows, func() error {
		var cu crm.Customer
		if err := rows.Scan(&cu.ID, &cu.Name); err != nil {
			return err
		}
		return onCustomer(cu)
	})
}

func (c *Customers) Close() error { return closeDB(c.db) }

type Orders struct {
	db    *gorm.DB
	table string
}

func NewOrders(db *gorm.DB, table string) *Orders {
	if table == "" {
		table = "orders"
	}
	return &Orders{db: db, table: table}
}

func OpenOrders(cfg config.SQLConfig) (*Orders, error) {
	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	return NewOrders(db, cfg.Table), nil
}

var _ crm.OrderSource = (*Orders)(nil)

func (o *Orders) StreamOrders(ctx context.Context, customerID int, onOrder func(crm.Order) error) error {
	rows, err := o.db.WithContext(ctx).
		Table(o.table).
		Select("id", "customer_id").
		Where("customer_id = ?", customerID).
		Order("id").
		Rows()
	if err != nil {
		return err
	}
	return scan(rows, func() error {
		var ord crm.Order
		if err := rows.Scan(&ord.ID, &ord.CustomerID); err != nil {
			return err
		}
		return onOrder(ord)
	})
}

func (o *Orders) Close() error { return closeDB(o.db) }

func scan(rows *sql.Rows, each func() error) error {
	defer rows.Close()
	for rows.Next() {
		if err := each(); err != nil {
			return err
		}
	}
	return rows.Err()
}

func closeDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
