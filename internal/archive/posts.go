package archive

import (
	"context"
	"fmt"

	"github.com/trendai/narrative-engine/internal/core/domain"
)

// SavePost upserts an accepted post. Re-ingesting the same post ID after a
// restart overwrites in place rather than duplicating.
func (db *DB) SavePost(ctx context.Context, post domain.Post) error {
	const q = `
		INSERT INTO posts (id, narrative_id, account_id, text, posted_at, engagement_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			narrative_id = EXCLUDED.narrative_id,
			account_id = EXCLUDED.account_id,
			text = EXCLUDED.text,
			posted_at = EXCLUDED.posted_at,
			engagement_count = EXCLUDED.engagement_count`

	_, err := db.pool.Exec(ctx, q,
		post.ID, post.NarrativeID, post.AccountID, post.Text, post.Timestamp, post.EngagementCount)
	if err != nil {
		return fmt.Errorf("save post %s: %w", post.ID, err)
	}

	return nil
}

// SaveAccount upserts account metadata observed at ingestion.
func (db *DB) SaveAccount(ctx context.Context, account domain.Account) error {
	const q = `
		INSERT INTO accounts (id, handle, age_days, follower_count, last_seen)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			handle = EXCLUDED.handle,
			age_days = EXCLUDED.age_days,
			follower_count = EXCLUDED.follower_count,
			last_seen = GREATEST(accounts.last_seen, EXCLUDED.last_seen)`

	_, err := db.pool.Exec(ctx, q,
		account.ID, account.Handle, account.AccountAgeDays, account.FollowerCount, account.LastSeen)
	if err != nil {
		return fmt.Errorf("save account %s: %w", account.ID, err)
	}

	return nil
}
