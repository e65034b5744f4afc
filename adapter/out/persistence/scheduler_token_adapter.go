package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"
)

// TokenAdapter implements out.TokenStore against the oauth_tokens table.
// The OAuth connect/refresh flow lives in the dashboard backend; this
// adapter only reads whatever token is on file.
type TokenAdapter struct {
	db *sqlx.DB
}

func NewTokenAdapter(db *sqlx.DB) *TokenAdapter {
	return &TokenAdapter{db: db}
}

type tokenRow struct {
	AccessToken  string         `db:"access_token"`
	RefreshToken sql.NullString `db:"refresh_token"`
	TokenType    sql.NullString `db:"token_type"`
	Expiry       sql.NullTime   `db:"expiry"`
}

func (a *TokenAdapter) TokenForUser(ctx context.Context, userID string) (*oauth2.Token, error) {
	var row tokenRow
	err := a.db.QueryRowxContext(ctx,
		`SELECT access_token, refresh_token, token_type, expiry
		 FROM oauth_tokens WHERE user_id = $1 AND provider = 'google'`, userID).StructScan(&row)
	if err != nil {
		return nil, fmt.Errorf("load google token for user %s: %w", userID, err)
	}

	token := &oauth2.Token{
		AccessToken: row.AccessToken,
		TokenType:   "Bearer",
	}
	if row.RefreshToken.Valid {
		token.RefreshToken = row.RefreshToken.String
	}
	if row.TokenType.Valid {
		token.TokenType = row.TokenType.String
	}
	if row.Expiry.Valid {
		token.Expiry = row.Expiry.Time
	}
	return token, nil
}
