package postgres

/*
Файл lead_repo.go — read-only проекция карточек лидов для детекторов.
CRUD карточек живёт в соседнем сервисе; губернатор лиды не мутирует,
поэтому здесь только SELECT.
*/

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

const leadColumns = `
	id, name, company, status, email, phone, deal_value, score, intent, opted_out,
	last_contact_at, last_reply_at, contract_sent_at, contract_deadline, enriched_at,
	created_at, updated_at`

// GetLeadByID — карточка для эскалации по сумме сделки и для консоли
func (r *GovernorRepo) GetLeadByID(ctx context.Context, id string) (*domain.Lead, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)

	lead, err := scanLeadRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // 404 решает вызывающий
		}
		return nil, fmt.Errorf("postgres: get lead: %w", err)
	}
	return lead, nil
}

// IsLeadOptedOut — точечная проверка для opt-out валидатора.
// Неизвестный лид трактуем как отписанный (Fail-Safe).
func (r *GovernorRepo) IsLeadOptedOut(ctx context.Context, id string) (bool, error) {
	var optedOut bool
	err := r.pool.QueryRow(ctx, `SELECT opted_out FROM leads WHERE id = $1`, id).Scan(&optedOut)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return true, fmt.Errorf("postgres: opt-out check: %w", err)
	}
	return optedOut, nil
}

// FindMoneyAtRisk — новые лиды с деньгами на кону, к которым никто не выходил
func (r *GovernorRepo) FindMoneyAtRisk(ctx context.Context, limit int) ([]domain.Lead, error) {
	return r.findLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = 'new' AND NOT opted_out
		  AND deal_value > 0 AND last_contact_at IS NULL
		ORDER BY deal_value DESC
		LIMIT $1`, limit)
}

// FindNearDeadlineContracts — отправленные договоры с дедлайном ближе 48 часов
func (r *GovernorRepo) FindNearDeadlineContracts(ctx context.Context, limit int) ([]domain.Lead, error) {
	return r.findLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = 'contract_sent'
		  AND contract_deadline IS NOT NULL
		  AND contract_deadline BETWEEN NOW() AND NOW() + INTERVAL '48 hours'
		ORDER BY contract_deadline
		LIMIT $1`, limit)
}

// FindStaleNonResponders — контакт был 3+ дня назад, ответа нет
func (r *GovernorRepo) FindStaleNonResponders(ctx context.Context, limit int) ([]domain.Lead, error) {
	return r.findLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = 'contacted' AND NOT opted_out
		  AND last_contact_at < NOW() - INTERVAL '3 days'
		  AND (last_reply_at IS NULL OR last_reply_at < last_contact_at)
		ORDER BY last_contact_at
		LIMIT $1`, limit)
}

// FindUnscored — лиды без скоринга/обогащения
func (r *GovernorRepo) FindUnscored(ctx context.Context, limit int) ([]domain.Lead, error) {
	return r.findLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE score IS NULL AND status NOT IN ('won', 'lost')
		ORDER BY created_at
		LIMIT $1`, limit)
}

// FindMissingContactData — скоринг есть, а писать некуда
func (r *GovernorRepo) FindMissingContactData(ctx context.Context, limit int) ([]domain.Lead, error) {
	return r.findLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE score IS NOT NULL AND status NOT IN ('won', 'lost')
		  AND COALESCE(email, '') = '' AND COALESCE(phone, '') = ''
		ORDER BY score DESC
		LIMIT $1`, limit)
}

// FindLongStale — месяц тишины, кандидаты на реактивацию
func (r *GovernorRepo) FindLongStale(ctx context.Context, limit int) ([]domain.Lead, error) {
	return r.findLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE NOT opted_out AND status NOT IN ('won', 'lost', 'new')
		  AND last_contact_at < NOW() - INTERVAL '30 days'
		ORDER BY deal_value DESC
		LIMIT $1`, limit)
}

func (r *GovernorRepo) findLeads(ctx context.Context, query string, limit int) ([]domain.Lead, error) {
	if limit <= 0 {
		limit = 25
	}

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query leads: %w", err)
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLeadRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan lead: %w", err)
		}
		leads = append(leads, *lead)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return leads, nil
}

// pgx.Row и pgx.Rows обе умеют Scan — хватает одного сканера
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLeadRow(row rowScanner) (*domain.Lead, error) {
	var l domain.Lead
	var company, email, phone, intent sql.NullString
	var score sql.NullFloat64
	var lastContact, lastReply, contractSent, contractDeadline, enriched sql.NullTime
	var status string

	err := row.Scan(
		&l.ID, &l.Name, &company, &status, &email, &phone, &l.DealValue, &score, &intent, &l.OptedOut,
		&lastContact, &lastReply, &contractSent, &contractDeadline, &enriched,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Status = domain.LeadStatus(status)
	if company.Valid {
		l.Company = company.String
	}
	if email.Valid {
		v := email.String
		l.Email = &v
	}
	if phone.Valid {
		v := phone.String
		l.Phone = &v
	}
	if intent.Valid {
		l.Intent = intent.String
	}
	if score.Valid {
		v := score.Float64
		l.Score = &v
	}
	if lastContact.Valid {
		t := lastContact.Time
		l.LastContactAt = &t
	}
	if lastReply.Valid {
		t := lastReply.Time
		l.LastReplyAt = &t
	}
	if contractSent.Valid {
		t := contractSent.Time
		l.ContractSentAt = &t
	}
	if contractDeadline.Valid {
		t := contractDeadline.Time
		l.ContractDeadline = &t
	}
	if enriched.Valid {
		t := enriched.Time
		l.EnrichedAt = &t
	}
	return &l, nil
}
