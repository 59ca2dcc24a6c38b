package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// duplicateWindow is how far back duplicate-signal queries look.
const duplicateWindowDays = 14

// bulkQtyThreshold flags carts that order an unusual quantity of one SKU.
const bulkQtyThreshold = 10

// NormalizePhone reduces a phone number to digits for duplicate matching.
// A leading international prefix ("+" or "00") is kept as "+".
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	plus := strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "00")
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if plus {
		digits = strings.TrimPrefix(digits, "00")
		return "+" + digits
	}
	return digits
}

// NormalizeAddress lowercases, strips punctuation, and collapses whitespace so
// trivially reworded addresses compare equal.
func NormalizeAddress(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// AddressNormalizer canonicalizes a free-text shipping address. Implemented by
// the AI agent; the rule-based NormalizeAddress is the fallback.
type AddressNormalizer interface {
	NormalizeAddress(ctx context.Context, raw string) (string, error)
}

// scoreSignals turns detected duplicate signals into a 0-100 score with
// reasons. Pure so the weighting is unit-testable.
func scoreSignals(dupPhone, dupAddress, dupIP int, bulkSKU string, bulkQty int) (score int, reasons []string) {
	if dupPhone > 0 {
		score += 35
		reasons = append(reasons, fmt.Sprintf("%d recent orders share this phone number", dupPhone))
	}
	if dupAddress > 0 {
		score += 25
		reasons = append(reasons, fmt.Sprintf("%d recent orders share this address", dupAddress))
	}
	if dupIP > 0 {
		score += 15
		reasons = append(reasons, fmt.Sprintf("%d recent orders share this IP", dupIP))
	}
	if bulkSKU != "" {
		score += 25
		reasons = append(reasons, fmt.Sprintf("bulk quantity: %d x %s", bulkQty, bulkSKU))
	}
	if score > 100 {
		score = 100
	}
	return score, reasons
}

func levelForScore(score int) RiskLevel {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskService scores fresh orders for duplicate and bulk-buy signals.
type RiskService interface {
	// ScoreOrder computes and stores the risk score, level, and reasons for an
	// order. High-risk orders are additionally flagged review_required, which
	// keeps them out of batches until an operator clears them.
	ScoreOrder(ctx context.Context, orderID int64) (*Order, error)
}

type riskService struct {
	pool       *pgxpool.Pool
	events     *EventRecorder
	normalizer AddressNormalizer // optional
}

func NewRiskService(pool *pgxpool.Pool, events *EventRecorder, normalizer AddressNormalizer) RiskService {
	return &riskService{pool: pool, events: events, normalizer: normalizer}
}

func (s *riskService) ScoreOrder(ctx context.Context, orderID int64) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items, err = fetchOrderItems(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	phoneNorm := NormalizePhone(order.Phone)
	addrNorm := s.normalizeAddress(ctx, order.Address)

	dupPhone, dupAddress, dupIP, err := s.duplicateCounts(ctx, tx, order, phoneNorm, addrNorm)
	if err != nil {
		if evErr := s.events.SystemEvent(ctx, "risk-scorer", RiskFailedPayload{Reason: err.Error()}); evErr != nil {
			return nil, errors.Join(err, evErr)
		}
		return nil, err
	}

	bulkSKU, bulkQty := "", 0
	for _, it := range order.Items {
		if it.Quantity >= bulkQtyThreshold && it.Quantity > bulkQty {
			bulkSKU, bulkQty = it.SKU, it.Quantity
		}
	}

	score, reasons := scoreSignals(dupPhone, dupAddress, dupIP, bulkSKU, bulkQty)
	level := levelForScore(score)
	reviewRequired := order.ReviewRequired || level == RiskHigh

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET phone_normalized = $1, address_normalized = $2,
		    risk_score = $3, risk_level = $4, risk_reasons = $5,
		    review_required = $6, updated_at = NOW()
		WHERE id = $7
	`, phoneNorm, addrNorm, score, string(level), reasons, reviewRequired, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to store risk score: %w", err)
	}

	err = s.events.OrderEventTx(ctx, tx, orderID, "risk-scorer", RiskScoredPayload{
		Score:   score,
		Level:   level,
		Reasons: reasons,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit risk score: %w", err)
	}

	order.PhoneNormalized = phoneNorm
	order.AddressNormalized = addrNorm
	order.RiskScore = &score
	order.RiskLevel = &level
	order.RiskReasons = reasons
	order.ReviewRequired = reviewRequired
	return order, nil
}

// normalizeAddress prefers the AI normalizer and falls back to the rule-based
// form when the agent is absent or errors.
func (s *riskService) normalizeAddress(ctx context.Context, raw string) string {
	if s.normalizer != nil {
		if norm, err := s.normalizer.NormalizeAddress(ctx, raw); err == nil && norm != "" {
			return NormalizeAddress(norm)
		}
	}
	return NormalizeAddress(raw)
}

func (s *riskService) duplicateCounts(ctx context.Context, tx pgx.Tx, order *Order, phoneNorm, addrNorm string) (dupPhone, dupAddress, dupIP int, err error) {
	// Canceled and merged orders do not count as duplicate signals.
	const base = `
		SELECT COUNT(*) FROM orders
		WHERE id <> $1
		  AND status NOT IN ('canceled', 'merged')
		  AND created_at > NOW() - make_interval(days => $2)
		  AND `

	if phoneNorm != "" {
		err = tx.QueryRow(ctx, base+"phone_normalized = $3",
			order.ID, duplicateWindowDays, phoneNorm).Scan(&dupPhone)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("failed to count duplicate phones: %w", err)
		}
	}
	if addrNorm != "" {
		err = tx.QueryRow(ctx, base+"address_normalized = $3",
			order.ID, duplicateWindowDays, addrNorm).Scan(&dupAddress)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("failed to count duplicate addresses: %w", err)
		}
	}
	if order.IP != "" {
		err = tx.QueryRow(ctx, base+"ip = $3",
			order.ID, duplicateWindowDays, order.IP).Scan(&dupIP)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("failed to count duplicate IPs: %w", err)
		}
	}
	return dupPhone, dupAddress, dupIP, nil
}
