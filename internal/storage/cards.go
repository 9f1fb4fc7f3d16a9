package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/netn10/learn-romanian/internal/domain"
	"github.com/netn10/learn-romanian/internal/fingerprint"
)

const cardColumns = `c.id, c.english, c.romanian, c.source_id, c.created_at`

// Order keys accepted by CardQuery.
const (
	OrderCreatedAt = "created_at"
	OrderRomanian  = "romanian"
	OrderEnglish   = "english"
	OrderID        = "id"
)

var orderColumns = map[string]string{
	OrderCreatedAt: "c.created_at",
	OrderRomanian:  "c.romanian COLLATE NOCASE",
	OrderEnglish:   "c.english COLLATE NOCASE",
	OrderID:        "c.id",
}

// CardQuery filters, orders and paginates a card listing.
type CardQuery struct {
	Search         string
	RomanianPrefix string
	EnglishPrefix  string
	Tags           []string
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time

	PrimaryKey    string
	PrimaryDesc   bool
	SecondaryKey  string
	SecondaryDesc bool

	// Page is 1-based. PageSize 0 returns every matching card.
	Page     int
	PageSize int
}

// BulkOptions controls BulkCreate.
type BulkOptions struct {
	SkipDuplicates bool
	Tags           []string
	SourceID       *int64
}

// CreateCard validates and stores a single pair.
func (db *DB) CreateCard(ctx context.Context, pair domain.ParsedPair, tags []string) (*domain.Card, error) {
	var card *domain.Card
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		card, err = insertCard(ctx, tx, pair, domain.NormalizeTags(tags), nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// BulkCreate stores parsed pairs in one transaction. With SkipDuplicates a
// pair is skipped when a card with the same normalized Romanian text
// already exists, including cards added earlier in the same batch.
func (db *DB) BulkCreate(ctx context.Context, pairs []domain.ParsedPair, opts BulkOptions) (*domain.ImportResult, error) {
	result := &domain.ImportResult{TotalParsed: len(pairs), Added: []domain.Card{}}
	tags := domain.NormalizeTags(opts.Tags)

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for _, pair := range pairs {
			if !pair.Valid() {
				result.SkippedCount++
				continue
			}
			if opts.SkipDuplicates {
				exists, err := romanianExists(ctx, tx, pair.Romanian)
				if err != nil {
					return err
				}
				if exists {
					result.SkippedCount++
					continue
				}
			}
			card, err := insertCard(ctx, tx, pair, tags, opts.SourceID)
			if err != nil {
				return err
			}
			result.Added = append(result.Added, *card)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.AddedCount = len(result.Added)
	return result, nil
}

// GetCard retrieves a card by its ID.
func (db *DB) GetCard(ctx context.Context, id string) (*domain.Card, error) {
	return getCard(ctx, db.conn, id)
}

// RandomCard returns a uniformly chosen card.
func (db *DB) RandomCard(ctx context.Context) (*domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards c ORDER BY RANDOM() LIMIT 1`)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoCards
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pick random card: %w", err)
	}
	if err := attachTags(ctx, db.conn, []*domain.Card{card}); err != nil {
		return nil, err
	}
	return card, nil
}

// ListAllCards returns every card, newest first.
func (db *DB) ListAllCards(ctx context.Context) ([]domain.Card, error) {
	cards, _, err := db.ListCards(ctx, CardQuery{})
	return cards, err
}

// ListCards returns one page of matching cards plus the total match count.
func (db *DB) ListCards(ctx context.Context, q CardQuery) ([]domain.Card, int, error) {
	where, args := q.whereClause()

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards c`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cards: %w", err)
	}

	query := `SELECT ` + cardColumns + ` FROM cards c` + where + q.orderClause()
	if q.PageSize > 0 {
		page := max(q.Page, 1)
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.PageSize, (page-1)*q.PageSize)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []*domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate card rows: %w", err)
	}
	rows.Close()

	if err := attachTags(ctx, db.conn, cards); err != nil {
		return nil, 0, err
	}
	return lo.Map(cards, func(c *domain.Card, _ int) domain.Card { return *c }), total, nil
}

// UpdateCard applies a partial update and returns the stored result.
func (db *DB) UpdateCard(ctx context.Context, id string, upd domain.CardUpdate) (*domain.Card, error) {
	if upd.Empty() {
		return nil, domain.ErrNoFieldsToUpdate
	}

	var card *domain.Card
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		card, err = getCard(ctx, tx, id)
		if err != nil {
			return err
		}
		if upd.English != nil {
			card.English = strings.TrimSpace(*upd.English)
		}
		if upd.Romanian != nil {
			card.Romanian = strings.TrimSpace(*upd.Romanian)
		}
		if card.English == "" || card.Romanian == "" {
			return domain.ErrInvalidCard
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE cards SET english = ?, romanian = ?, romanian_key = ?
			WHERE id = ?
		`, card.English, card.Romanian, fingerprint.Key(card.Romanian), id); err != nil {
			return fmt.Errorf("failed to update card %s: %w", id, err)
		}

		if upd.Tags != nil {
			card.Tags = domain.NormalizeTags(*upd.Tags)
			if _, err := tx.ExecContext(ctx, `DELETE FROM card_tags WHERE card_id = ?`, id); err != nil {
				return fmt.Errorf("failed to clear tags for card %s: %w", id, err)
			}
			if err := insertTags(ctx, tx, id, card.Tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// DeleteCard removes a card and its tags.
func (db *DB) DeleteCard(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows for card %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrCardNotFound
	}
	return nil
}

// ListTags returns every tag with its card count, alphabetically.
func (db *DB) ListTags(ctx context.Context) ([]domain.TagCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT tag, COUNT(*) FROM card_tags
		GROUP BY tag ORDER BY tag
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := []domain.TagCount{}
	for rows.Next() {
		var tc domain.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, tc)
	}
	return tags, rows.Err()
}

func (q CardQuery) whereClause() (string, []any) {
	var conds []string
	var args []any

	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		conds = append(conds, `(c.romanian LIKE ? ESCAPE '\' OR c.english LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if q.RomanianPrefix != "" {
		conds = append(conds, `c.romanian LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(q.RomanianPrefix)+"%")
	}
	if q.EnglishPrefix != "" {
		conds = append(conds, `c.english LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(q.EnglishPrefix)+"%")
	}
	if tags := domain.NormalizeTags(q.Tags); len(tags) > 0 {
		conds = append(conds, `c.id IN (SELECT card_id FROM card_tags WHERE tag IN (`+placeholders(len(tags))+`))`)
		args = append(args, lo.ToAnySlice(tags)...)
	}
	if q.CreatedAfter != nil {
		conds = append(conds, `c.created_at >= ?`)
		args = append(args, q.CreatedAfter.UTC())
	}
	if q.CreatedBefore != nil {
		conds = append(conds, `c.created_at <= ?`)
		args = append(args, q.CreatedBefore.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (q CardQuery) orderClause() string {
	primary, ok := orderColumns[q.PrimaryKey]
	primaryDesc := q.PrimaryDesc
	if !ok {
		primary, primaryDesc = orderColumns[OrderCreatedAt], true
	}
	secondary, ok := orderColumns[q.SecondaryKey]
	secondaryDesc := q.SecondaryDesc
	if !ok {
		secondary, secondaryDesc = orderColumns[OrderID], false
	}
	return " ORDER BY " + primary + direction(primaryDesc) + ", " + secondary + direction(secondaryDesc)
}

func direction(desc bool) string {
	if desc {
		return " DESC"
	}
	return " ASC"
}

func insertCard(ctx context.Context, q querier, pair domain.ParsedPair, tags []string, sourceID *int64) (*domain.Card, error) {
	card := &domain.Card{
		ID:        uuid.NewString(),
		English:   strings.TrimSpace(pair.English),
		Romanian:  strings.TrimSpace(pair.Romanian),
		Tags:      tags,
		SourceID:  sourceID,
		CreatedAt: time.Now().UTC(),
	}
	if card.English == "" || card.Romanian == "" {
		return nil, domain.ErrInvalidCard
	}
	if card.Tags == nil {
		card.Tags = []string{}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO cards (id, english, romanian, romanian_key, source_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		card.ID,
		card.English,
		card.Romanian,
		fingerprint.Key(card.Romanian),
		sourceID,
		card.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert card %q: %w", card.Romanian, err)
	}
	if err := insertTags(ctx, q, card.ID, card.Tags); err != nil {
		return nil, err
	}
	return card, nil
}

func insertTags(ctx context.Context, q querier, cardID string, tags []string) error {
	for i, tag := range tags {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO card_tags (card_id, tag, position) VALUES (?, ?, ?)
		`, cardID, tag, i); err != nil {
			return fmt.Errorf("failed to tag card %s with %q: %w", cardID, tag, err)
		}
	}
	return nil
}

func romanianExists(ctx context.Context, q querier, romanian string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM cards WHERE romanian_key = ? LIMIT 1`, fingerprint.Key(romanian)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate for %q: %w", romanian, err)
	}
	return true, nil
}

func getCard(ctx context.Context, q querier, id string) (*domain.Card, error) {
	row := q.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards c WHERE c.id = ?`, id)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	if err := attachTags(ctx, q, []*domain.Card{card}); err != nil {
		return nil, err
	}
	return card, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(s scanner) (*domain.Card, error) {
	var (
		card     domain.Card
		sourceID sql.NullInt64
	)
	if err := s.Scan(&card.ID, &card.English, &card.Romanian, &sourceID, &card.CreatedAt); err != nil {
		return nil, err
	}
	if sourceID.Valid {
		id := sourceID.Int64
		card.SourceID = &id
	}
	card.Tags = []string{}
	return &card, nil
}

// tagChunkSize keeps each tag lookup well under SQLite's bound variable limit.
const tagChunkSize = 500

func attachTags(ctx context.Context, q querier, cards []*domain.Card) error {
	if len(cards) == 0 {
		return nil
	}
	byID := lo.SliceToMap(cards, func(c *domain.Card) (string, *domain.Card) { return c.ID, c })
	ids := lo.Map(cards, func(c *domain.Card, _ int) any { return c.ID })

	for _, chunk := range lo.Chunk(ids, tagChunkSize) {
		if err := loadTagChunk(ctx, q, byID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func loadTagChunk(ctx context.Context, q querier, byID map[string]*domain.Card, ids []any) error {
	rows, err := q.QueryContext(ctx, `
		SELECT card_id, tag FROM card_tags
		WHERE card_id IN (`+placeholders(len(ids))+`)
		ORDER BY card_id, position
	`, ids...)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cardID, tag string
		if err := rows.Scan(&cardID, &tag); err != nil {
			return fmt.Errorf("failed to scan tag row: %w", err)
		}
		if card, ok := byID[cardID]; ok {
			card.Tags = append(card.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate tag rows: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
