package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/hka-connector/internal/domain"
	"github.com/jhoicas/hka-connector/internal/domain/entity"
	"github.com/jhoicas/hka-connector/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const hkaColumns = `
	COALESCE(i.hka_status, ''), COALESCE(i.hka_cpe_number, ''), i.hka_sent_at,
	COALESCE(i.hka_error_message, ''), i.hka_retry_count,
	i.hka_xml_file, i.hka_pdf_file, i.hka_cdr_file`

// GetByID obtiene la factura completa: emisor, receptor, líneas, término de pago,
// información adicional y detracción.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `
		SELECT i.id, i.company_id, i.name, i.document_type_code, i.move_type, i.state,
		       i.journal_type, i.operation_type_code, i.invoice_date, i.due_date, i.currency_code,
		       i.amount_untaxed, i.amount_tax, i.amount_total, i.notes, i.payment_term_id,
		       i.detraction_code, i.detraction_payment_method, i.detraction_rate,
		       i.detraction_bank_account,
		       ` + hkaColumns + `,
		       i.created_at, i.updated_at,
		       c.id, c.name, c.ruc, c.street, c.street2, c.city, c.state, c.country_code, c.ubigeo,
		       c.hka_user, c.hka_password, c.hka_test_mode,
		       p.id, p.name, p.tax_id_type, p.tax_id, p.email
		FROM invoices i
		JOIN companies c ON c.id = i.company_id
		JOIN partners p ON p.id = i.partner_id
		WHERE i.id = $1`

	var (
		inv                        entity.Invoice
		company                    entity.Company
		partner                    entity.Partner
		dueDate                    *time.Time
		termID                     *string
		detCode, detMethod, detAcc *string
		detRate                    *decimal.Decimal
	)
	err := r.q.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.CompanyID, &inv.Name, &inv.DocumentTypeCode, &inv.MoveType, &inv.State,
		&inv.JournalType, &inv.OperationTypeCode, &inv.InvoiceDate, &dueDate, &inv.CurrencyCode,
		&inv.AmountUntaxed, &inv.AmountTax, &inv.AmountTotal, &inv.Notes, &termID,
		&detCode, &detMethod, &detRate, &detAcc,
		&inv.HKA.Status, &inv.HKA.CPENumber, &inv.HKA.SentAt, &inv.HKA.ErrorMessage, &inv.HKA.RetryCount,
		&inv.HKA.XMLFile, &inv.HKA.PDFFile, &inv.HKA.CDRFile,
		&inv.CreatedAt, &inv.UpdatedAt,
		&company.ID, &company.Name, &company.RUC, &company.Street, &company.Street2, &company.City,
		&company.State, &company.CountryCode, &company.Ubigeo,
		&company.HKAUser, &company.HKAPassword, &company.HKATestMode,
		&partner.ID, &partner.Name, &partner.TaxIDType, &partner.TaxID, &partner.Email,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if dueDate != nil {
		inv.DueDate = *dueDate
	}
	inv.Issuer = &company
	inv.Recipient = &partner

	// el monto de detracción no se lee: se deriva de total y tasa
	inv.SetTotals(inv.AmountUntaxed, inv.AmountTax, inv.AmountTotal)
	if derefStr(detCode) != "" {
		d := &entity.Detraction{
			Code:          *detCode,
			PaymentMethod: derefStr(detMethod),
			BankAccount:   derefStr(detAcc),
		}
		if detRate != nil {
			d.Rate = *detRate
		}
		inv.SetDetraction(d)
	}

	if inv.Lines, err = r.lines(ctx, inv.ID); err != nil {
		return nil, err
	}
	if inv.AdditionalInfo, err = r.additionalInfo(ctx, inv.ID); err != nil {
		return nil, err
	}
	if termID != nil {
		if inv.PaymentTerm, err = r.paymentTerm(ctx, *termID); err != nil {
			return nil, err
		}
	}
	return &inv, nil
}

func (r *InvoiceRepo) lines(ctx context.Context, invoiceID string) ([]entity.InvoiceLine, error) {
	query := `
		SELECT id, description, quantity, unit_price, price_subtotal, price_total, tax_rate, unit_code
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY sequence, id`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice lines: %w", err)
	}
	defer rows.Close()
	var list []entity.InvoiceLine
	for rows.Next() {
		var l entity.InvoiceLine
		if err := rows.Scan(&l.ID, &l.Description, &l.Quantity, &l.UnitPrice,
			&l.PriceSubtotal, &l.PriceTotal, &l.TaxRate, &l.UnitCode); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

func (r *InvoiceRepo) additionalInfo(ctx context.Context, invoiceID string) ([]entity.InfoEntry, error) {
	rows, err := r.q.Query(ctx,
		`SELECT title, value FROM invoice_additional_info WHERE invoice_id = $1 ORDER BY sequence`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list additional info: %w", err)
	}
	defer rows.Close()
	var list []entity.InfoEntry
	for rows.Next() {
		var e entity.InfoEntry
		if err := rows.Scan(&e.Title, &e.Value); err != nil {
			return nil, fmt.Errorf("scan additional info: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func (r *InvoiceRepo) paymentTerm(ctx context.Context, termID string) (*entity.PaymentTerm, error) {
	term := &entity.PaymentTerm{ID: termID}
	if err := r.q.QueryRow(ctx, `SELECT name FROM payment_terms WHERE id = $1`, termID).Scan(&term.Name); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment term: %w", err)
	}
	rows, err := r.q.Query(ctx, `
		SELECT value, value_amount, months, days
		FROM payment_term_lines WHERE payment_term_id = $1 ORDER BY sequence, id`, termID)
	if err != nil {
		return nil, fmt.Errorf("list payment term lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l entity.PaymentTermLine
		if err := rows.Scan(&l.Value, &l.ValueAmount, &l.Months, &l.Days); err != nil {
			return nil, fmt.Errorf("scan payment term line: %w", err)
		}
		term.Lines = append(term.Lines, l)
	}
	return term, rows.Err()
}

// ListPendingSend facturas de venta contabilizadas en to_send, agrupadas por empresa.
func (r *InvoiceRepo) ListPendingSend(ctx context.Context, limit int) ([]*entity.Invoice, error) {
	return r.listByStatus(ctx, `i.hka_status = 'to_send'`, limit)
}

// ListPendingDownload facturas en sent con al menos un artefacto por descargar.
func (r *InvoiceRepo) ListPendingDownload(ctx context.Context, limit int) ([]*entity.Invoice, error) {
	return r.listByStatus(ctx,
		`i.hka_status = 'sent' AND NOT (i.hka_xml_file AND i.hka_pdf_file AND i.hka_cdr_file)`, limit)
}

func (r *InvoiceRepo) listByStatus(ctx context.Context, cond string, limit int) ([]*entity.Invoice, error) {
	query := `
		SELECT i.id, i.company_id, i.name, i.document_type_code, ` + hkaColumns + `
		FROM invoices i
		WHERE ` + cond + `
		  AND i.move_type = 'out_invoice' AND i.journal_type = 'sale' AND i.state = 'posted'
		ORDER BY i.company_id, i.invoice_date, i.name
		LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending invoices: %w", err)
	}
	defer rows.Close()
	var list []*entity.Invoice
	for rows.Next() {
		var inv entity.Invoice
		if err := rows.Scan(&inv.ID, &inv.CompanyID, &inv.Name, &inv.DocumentTypeCode,
			&inv.HKA.Status, &inv.HKA.CPENumber, &inv.HKA.SentAt, &inv.HKA.ErrorMessage, &inv.HKA.RetryCount,
			&inv.HKA.XMLFile, &inv.HKA.PDFFile, &inv.HKA.CDRFile); err != nil {
			return nil, fmt.Errorf("scan pending invoice: %w", err)
		}
		list = append(list, &inv)
	}
	return list, rows.Err()
}

// UpdateHKAState persiste los campos hka_* si la factura sigue en el estado from.
func (r *InvoiceRepo) UpdateHKAState(ctx context.Context, invoiceID string, from, to entity.HKAState) error {
	query := `
		UPDATE invoices
		SET hka_status        = $2,
		    hka_cpe_number    = $3,
		    hka_sent_at       = $4,
		    hka_error_message = $5,
		    hka_retry_count   = $6,
		    hka_xml_file      = $7,
		    hka_pdf_file      = $8,
		    hka_cdr_file      = $9,
		    updated_at        = now()
		WHERE id = $1
		  AND hka_status = $10
		  AND hka_retry_count = $11`
	tag, err := r.q.Exec(ctx, query, invoiceID,
		to.Status, nullIfEmpty(to.CPENumber), to.SentAt, nullIfEmpty(to.ErrorMessage), to.RetryCount,
		to.XMLFile, to.PDFFile, to.CDRFile,
		from.Status, from.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("update invoice hka state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: la factura %s no existe o cambió de estado (se esperaba %q)", domain.ErrConflict, invoiceID, from.Status)
	}
	return nil
}
