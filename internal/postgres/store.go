package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
	"github.com/ariefcatur/cyberphone-ledger/internal/metrics"
)

const backendName = "postgres"

// Store implements commerce.Repository on PostgreSQL. Rows that are read to be
// modified are locked with SELECT ... FOR UPDATE; a cart is guarded by a
// transaction scoped advisory lock on its owner.
type Store struct {
	DB         *pgxpool.Pool
	MaxRetries int
	Log        *slog.Logger
}

var _ commerce.Repository = (*Store)(nil)

func NewStore(db *pgxpool.Pool, maxRetries int, log *slog.Logger) *Store {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{DB: db, MaxRetries: maxRetries, Log: log}
}

// WithinTx retries fn on serialization failures and deadlocks.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx commerce.Tx) error) error {
	start := time.Now()
	var err error
	for attempt := 1; attempt <= s.MaxRetries; attempt++ {
		err = s.once(ctx, fn)
		if !retryable(err) {
			break
		}
		metrics.TxRetries.WithLabelValues(backendName).Inc()
		s.Log.DebugContext(ctx, "retrying transaction", "attempt", attempt, "error", err)
	}
	outcome := "commit"
	if err != nil {
		outcome = "rollback"
	}
	metrics.TxDuration.WithLabelValues(backendName, outcome).Observe(time.Since(start).Seconds())
	if retryable(err) {
		return fmt.Errorf("%w: %v", commerce.ErrConflict, err)
	}
	return err
}

func (s *Store) once(ctx context.Context, fn func(ctx context.Context, tx commerce.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

type pgTx struct {
	tx pgx.Tx
}

func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, commerce.ErrNotFound)
	}
	return err
}

// ---- users ----

const userColumns = `id, user_type, first_name, last_name, email, balance, followed_users, followers, store_id, card`

func scanUser(row pgx.Row) (commerce.User, error) {
	var (
		u    commerce.User
		card []byte
	)
	err := row.Scan(&u.ID, &u.UserType, &u.FirstName, &u.LastName, &u.Email, &u.Balance,
		&u.FollowedUsers, &u.Followers, &u.StoreID, &card)
	if err != nil {
		return u, err
	}
	if len(card) > 0 {
		u.Card = &commerce.PaymentCard{}
		if err := json.Unmarshal(card, u.Card); err != nil {
			return u, fmt.Errorf("decode card: %w", err)
		}
	}
	return u, nil
}

func cardJSON(c *commerce.PaymentCard) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func (t *pgTx) User(ctx context.Context, id string) (commerce.User, error) {
	u, err := scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1 FOR UPDATE`, id))
	return u, notFound(err, "user", id)
}

func (t *pgTx) SaveUser(ctx context.Context, u commerce.User) error {
	card, err := cardJSON(u.Card)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE users SET user_type=$2, first_name=$3, last_name=$4, email=$5, balance=$6,
			followed_users=$7, followers=$8, store_id=$9, card=$10
		WHERE id=$1`,
		u.ID, u.UserType, u.FirstName, u.LastName, u.Email, u.Balance,
		nonNil(u.FollowedUsers), nonNil(u.Followers), u.StoreID, card)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", u.ID, commerce.ErrNotFound)
	}
	return nil
}

func (t *pgTx) PutUser(ctx context.Context, u commerce.User) error {
	card, err := cardJSON(u.Card)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO users(`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET user_type=EXCLUDED.user_type, first_name=EXCLUDED.first_name,
			last_name=EXCLUDED.last_name, email=EXCLUDED.email, balance=EXCLUDED.balance,
			followed_users=EXCLUDED.followed_users, followers=EXCLUDED.followers,
			store_id=EXCLUDED.store_id, card=EXCLUDED.card`,
		u.ID, u.UserType, u.FirstName, u.LastName, u.Email, u.Balance,
		nonNil(u.FollowedUsers), nonNil(u.Followers), u.StoreID, card)
	return err
}

// ---- catalog ----

func (t *pgTx) Product(ctx context.Context, id string) (commerce.Product, error) {
	var p commerce.Product
	err := t.tx.QueryRow(ctx, `
		SELECT id, store_id, name, description, price, affiliate_commission_rate, type,
			digital_content_url, colors, average_rating, rating_count
		FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.StoreID, &p.Name, &p.Description, &p.Price, &p.AffiliateCommissionRate, &p.Type,
			&p.DigitalContentURL, &p.Colors, &p.AverageRating, &p.RatingCount)
	if err != nil {
		return p, notFound(err, "product", id)
	}

	rows, err := t.tx.Query(ctx, `
		SELECT id, sale_id, user_id, rating, comment, created_at
		FROM product_ratings WHERE product_id=$1 ORDER BY created_at`, id)
	if err != nil {
		return p, err
	}
	defer rows.Close()
	p.Ratings = []commerce.ProductRating{}
	for rows.Next() {
		var r commerce.ProductRating
		if err := rows.Scan(&r.ID, &r.SaleID, &r.UserID, &r.Rating, &r.Comment, &r.Timestamp); err != nil {
			return p, err
		}
		p.Ratings = append(p.Ratings, r)
	}
	return p, rows.Err()
}

func (t *pgTx) SaveProductRating(ctx context.Context, p commerce.Product, r commerce.ProductRating) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO product_ratings(id, product_id, sale_id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, p.ID, r.SaleID, r.UserID, r.Rating, r.Comment, r.Timestamp); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `UPDATE products SET average_rating=$2, rating_count=$3 WHERE id=$1`,
		p.ID, p.AverageRating, p.RatingCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", p.ID, commerce.ErrNotFound)
	}
	return nil
}

func (t *pgTx) PutProduct(ctx context.Context, p commerce.Product) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO products(id, store_id, name, description, price, affiliate_commission_rate, type,
			digital_content_url, colors, average_rating, rating_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET store_id=EXCLUDED.store_id, name=EXCLUDED.name,
			description=EXCLUDED.description, price=EXCLUDED.price,
			affiliate_commission_rate=EXCLUDED.affiliate_commission_rate, type=EXCLUDED.type,
			digital_content_url=EXCLUDED.digital_content_url, colors=EXCLUDED.colors,
			average_rating=EXCLUDED.average_rating, rating_count=EXCLUDED.rating_count`,
		p.ID, p.StoreID, p.Name, p.Description, p.Price, p.AffiliateCommissionRate, p.Type,
		p.DigitalContentURL, nonNil(p.Colors), p.AverageRating, p.RatingCount)
	if err != nil {
		return err
	}
	for _, r := range p.Ratings {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO product_ratings(id, product_id, sale_id, user_id, rating, comment, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			r.ID, p.ID, r.SaleID, r.UserID, r.Rating, r.Comment, r.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) StoreByID(ctx context.Context, id string) (commerce.Store, error) {
	var s commerce.Store
	err := t.tx.QueryRow(ctx, `SELECT id, professor_id, name, description, product_ids FROM stores WHERE id=$1`, id).
		Scan(&s.ID, &s.ProfessorID, &s.Name, &s.Description, &s.ProductIDs)
	return s, notFound(err, "store", id)
}

func (t *pgTx) PutStore(ctx context.Context, s commerce.Store) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stores(id, professor_id, name, description, product_ids)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET professor_id=EXCLUDED.professor_id, name=EXCLUDED.name,
			description=EXCLUDED.description, product_ids=EXCLUDED.product_ids`,
		s.ID, s.ProfessorID, s.Name, s.Description, nonNil(s.ProductIDs))
	return err
}

// ---- sales ----

const saleColumns = `id, product_id, buyer_id, affiliate_user_id, store_id, commission_earned, sale_amount,
	created_at, shipping_address, digital_content_url, selected_color, status, is_rated`

func scanSale(row pgx.Row) (commerce.Sale, error) {
	var s commerce.Sale
	err := row.Scan(&s.ID, &s.ProductID, &s.BuyerID, &s.AffiliateUserID, &s.StoreID, &s.CommissionEarned,
		&s.SaleAmount, &s.Timestamp, &s.ShippingAddress, &s.DigitalContentURL, &s.SelectedColor, &s.Status, &s.IsRated)
	return s, err
}

func (t *pgTx) InsertSale(ctx context.Context, s commerce.Sale) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO sales(`+saleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.ProductID, s.BuyerID, s.AffiliateUserID, s.StoreID, s.CommissionEarned, s.SaleAmount,
		s.Timestamp, s.ShippingAddress, s.DigitalContentURL, s.SelectedColor, s.Status, s.IsRated)
	return err
}

func (t *pgTx) Sale(ctx context.Context, id string) (commerce.Sale, error) {
	s, err := scanSale(t.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 FOR UPDATE`, id))
	return s, notFound(err, "sale", id)
}

func (t *pgTx) SaveSale(ctx context.Context, s commerce.Sale) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sales SET status=$2, is_rated=$3 WHERE id=$1`, s.ID, s.Status, s.IsRated)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sale %s: %w", s.ID, commerce.ErrNotFound)
	}
	return nil
}

func (t *pgTx) Sales(ctx context.Context, f commerce.SaleFilter) ([]commerce.Sale, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+saleColumns+` FROM sales
		WHERE ($1 = '' OR buyer_id=$1) AND ($2 = '' OR affiliate_user_id=$2) AND ($3 = '' OR store_id=$3)
		ORDER BY created_at DESC`,
		f.BuyerID, f.AffiliateID, f.StoreID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []commerce.Sale{}
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---- carts ----

func (t *pgTx) lockCart(ctx context.Context, userID string) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('cart:' || $1))`, userID)
	return err
}

func (t *pgTx) Cart(ctx context.Context, userID string) ([]commerce.CartItem, error) {
	if err := t.lockCart(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, `
		SELECT product_id, quantity, selected_color FROM carts
		WHERE user_id=$1 ORDER BY position`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []commerce.CartItem{}
	for rows.Next() {
		var it commerce.CartItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.SelectedColor); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (t *pgTx) SaveCart(ctx context.Context, userID string, items []commerce.CartItem) error {
	if err := t.lockCart(ctx, userID); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM carts WHERE user_id=$1`, userID); err != nil {
		return err
	}
	for i, it := range items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO carts(user_id, product_id, selected_color, quantity, position)
			VALUES ($1, $2, $3, $4, $5)`,
			userID, it.ProductID, it.SelectedColor, it.Quantity, i); err != nil {
			return err
		}
	}
	return nil
}

// ---- notifications ----

func (t *pgTx) InsertNotification(ctx context.Context, n commerce.Notification) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO notifications(id, type, recipient_id, actor_id, post_id, sale_id, created_at, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.Type, n.RecipientID, n.ActorID, n.PostID, n.SaleID, n.Timestamp, n.IsRead)
	return err
}

func (t *pgTx) Notifications(ctx context.Context, recipientID string) ([]commerce.Notification, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, type, recipient_id, actor_id, post_id, sale_id, created_at, is_read
		FROM notifications WHERE recipient_id=$1 ORDER BY created_at DESC`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []commerce.Notification{}
	for rows.Next() {
		var n commerce.Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.RecipientID, &n.ActorID, &n.PostID, &n.SaleID, &n.Timestamp, &n.IsRead); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (t *pgTx) MarkNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE recipient_id=$1 AND NOT is_read`, recipientID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
