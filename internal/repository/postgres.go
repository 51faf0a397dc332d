package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

const saleColumns = `
	id, order_id, session_id, request_id, customer_id, prescription_id,
	prescription, items, payment_method, subtotal, discount, total, deposit,
	balance_due, committed_at`

// PostgresSaleRepository implements SaleRepository using PostgreSQL.
type PostgresSaleRepository struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewPostgresSaleRepository(db *sql.DB, logger *logging.Logger) *PostgresSaleRepository {
	return &PostgresSaleRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a sale. A sale with the same order id is left unchanged.
func (r *PostgresSaleRepository) Create(ctx context.Context, sale *models.SaleRecord) error {
	if sale.ID == "" {
		sale.ID = generateSaleID()
	}
	r.logger.Debug("Recording sale", logging.Fields{
		"sale_id":  sale.ID,
		"order_id": sale.OrderID,
	})

	itemsJSON, err := json.Marshal(sale.Items)
	if err != nil {
		return err
	}
	var rxJSON []byte
	if sale.Prescription != nil {
		if rxJSON, err = json.Marshal(sale.Prescription); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO pos_sales (` + saleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (order_id) DO NOTHING
	`

	_, err = r.db.ExecContext(ctx, query,
		sale.ID,
		sale.OrderID,
		sale.SessionID,
		sale.RequestID,
		nullString(sale.CustomerID),
		nullString(sale.PrescriptionID),
		rxJSON,
		itemsJSON,
		sale.PaymentMethod,
		sale.Subtotal.String(),
		sale.Discount.String(),
		sale.Total.String(),
		sale.Deposit.String(),
		sale.BalanceDue.String(),
		sale.CommittedAt,
	)
	if err != nil {
		r.logger.Error("Failed to record sale", logging.Fields{
			"order_id": sale.OrderID,
			"error":    err.Error(),
		})
		return err
	}

	r.logger.Info("Sale recorded", logging.Fields{
		"sale_id":  sale.ID,
		"order_id": sale.OrderID,
	})
	return nil
}

// GetByOrderID returns the sale recorded for an order.
func (r *PostgresSaleRepository) GetByOrderID(ctx context.Context, orderID string) (*models.SaleRecord, error) {
	query := `SELECT ` + saleColumns + ` FROM pos_sales WHERE order_id = $1`

	sale, err := scanSale(r.db.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to fetch sale", logging.Fields{
			"order_id": orderID,
			"error":    err.Error(),
		})
		return nil, err
	}
	return sale, nil
}

// ListByCustomer returns a customer's sales, newest first, and the total count.
func (r *PostgresSaleRepository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*models.SaleRecord, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pos_sales WHERE customer_id = $1`, customerID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + saleColumns + `
		FROM pos_sales
		WHERE customer_id = $1
		ORDER BY committed_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, customerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sales := make([]*models.SaleRecord, 0)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	r.logger.Debug("Sales listed", logging.Fields{
		"customer_id": customerID,
		"count":       len(sales),
		"total":       total,
	})
	return sales, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSale(row rowScanner) (*models.SaleRecord, error) {
	var sale models.SaleRecord
	var customerID, prescriptionID sql.NullString
	var rxJSON, itemsJSON []byte
	var subtotal, discount, total, deposit, balance string

	err := row.Scan(
		&sale.ID,
		&sale.OrderID,
		&sale.SessionID,
		&sale.RequestID,
		&customerID,
		&prescriptionID,
		&rxJSON,
		&itemsJSON,
		&sale.PaymentMethod,
		&subtotal,
		&discount,
		&total,
		&deposit,
		&balance,
		&sale.CommittedAt,
	)
	if err != nil {
		return nil, err
	}

	sale.CustomerID = customerID.String
	sale.PrescriptionID = prescriptionID.String
	if err := json.Unmarshal(itemsJSON, &sale.Items); err != nil {
		return nil, err
	}
	if len(rxJSON) > 0 {
		var rx models.PrescriptionSnapshot
		if err := json.Unmarshal(rxJSON, &rx); err != nil {
			return nil, err
		}
		sale.Prescription = &rx
	}

	amounts := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{subtotal, &sale.Subtotal},
		{discount, &sale.Discount},
		{total, &sale.Total},
		{deposit, &sale.Deposit},
		{balance, &sale.BalanceDue},
	}
	for _, a := range amounts {
		d, err := decimal.NewFromString(a.raw)
		if err != nil {
			return nil, err
		}
		*a.dst = d
	}
	return &sale, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func generateSaleID() string {
	return "sale_" + uuid.NewString()
}

// Ping reports whether the database is reachable.
func (r *PostgresSaleRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}
