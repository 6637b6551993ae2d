// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

// # Storage Layer (PostgreSQL)
//
// Repositories in this file are strictly separated from domain logic. They
// implement domain-defined interfaces (e.g., [AccountRepository]) using the
// [pgxpool.Pool] connection manager.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miracleonyenma/keygate/internal/platform/apperr"
	"github.com/miracleonyenma/keygate/internal/platform/dberr"
)

// PostgresAccountRepository implements the AccountRepository interface using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new PostgreSQL implementation of the AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// accountColumns is the canonical select list for account scans.
const accountColumns = "id, email, firstname, lastname, picture, emailverified, createdat, updatedat"

// scanAccount reads one account row into an entity.
func scanAccount(row pgx.Row) (*Account, error) {
	account := &Account{}
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.FirstName,
		&account.LastName,
		&account.Picture,
		&account.EmailVerified,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// loadRoles attaches the account's role names.
func (repository *PostgresAccountRepository) loadRoles(ctx context.Context, account *Account) error {
	const query = `
		SELECT r.name
		FROM users.role r
		JOIN users.account_role ar ON ar.roleid = r.id
		WHERE ar.accountid = $1
		ORDER BY r.name`

	rows, err := repository.pool.Query(ctx, query, account.ID)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_load_roles_failed: %w", err)
	}
	defer rows.Close()

	account.Roles = account.Roles[:0]
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("postgres_account_repo_scan_role_failed: %w", err)
		}
		account.Roles = append(account.Roles, name)
	}

	return rows.Err()
}

// FindByID retrieves an account record by its unique ID, roles included.
func (repository *PostgresAccountRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	query := fmt.Sprintf("SELECT %s FROM users.account WHERE id = $1", accountColumns)

	account, err := scanAccount(repository.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_by_id_failed: %w", err)
	}

	if err := repository.loadRoles(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// FindByEmail retrieves an account record by its unique email address.
//
// # Returns
//
// Returns [*Account] if found, or [apperr.NotFound] if no account exists.
func (repository *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	query := fmt.Sprintf("SELECT %s FROM users.account WHERE email = $1", accountColumns)

	account, err := scanAccount(repository.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account with this email")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_by_email_failed: %w", err)
	}

	if err := repository.loadRoles(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// Create persists a new account record into the users.account table and
// attaches its initial roles inside one transaction.
func (repository *PostgresAccountRepository) Create(ctx context.Context, account *Account) error {
	const insertAccount = `
		INSERT INTO users.account (
			id, email, firstname, lastname, picture, emailverified, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	const attachRole = `
		INSERT INTO users.account_role (accountid, roleid)
		SELECT $1, id FROM users.role WHERE name = $2
		ON CONFLICT DO NOTHING`

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	transaction, err := repository.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_begin_failed: %w", err)
	}
	defer func() { _ = transaction.Rollback(ctx) }()

	_, err = transaction.Exec(ctx, insertAccount,
		account.ID,
		account.Email,
		account.FirstName,
		account.LastName,
		account.Picture,
		account.EmailVerified,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("An account with this email already exists")
		}
		return fmt.Errorf("postgres_account_repo_create_failed: %w", err)
	}

	for _, roleName := range account.Roles {
		if _, err := transaction.Exec(ctx, attachRole, account.ID, roleName); err != nil {
			return fmt.Errorf("postgres_account_repo_attach_role_failed: %w", err)
		}
	}

	if err := transaction.Commit(ctx); err != nil {
		return fmt.Errorf("postgres_account_repo_commit_failed: %w", err)
	}

	return nil
}

// Update persists changes to an account's mutable profile fields.
func (repository *PostgresAccountRepository) Update(ctx context.Context, account *Account) error {
	const query = `
		UPDATE users.account
		SET firstname = $2, lastname = $3, picture = $4, emailverified = $5, updatedat = $6
		WHERE id = $1`

	account.UpdatedAt = time.Now()
	_, err := repository.pool.Exec(ctx, query,
		account.ID,
		account.FirstName,
		account.LastName,
		account.Picture,
		account.EmailVerified,
		account.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_failed: %w", err)
	}

	return nil
}

// SetEmailVerified flips only the verified flag for a specific account.
func (repository *PostgresAccountRepository) SetEmailVerified(ctx context.Context, accountID string, verified bool) error {
	const query = "UPDATE users.account SET emailverified = $2, updatedat = $3 WHERE id = $1"

	_, err := repository.pool.Exec(ctx, query, accountID, verified, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_account_repo_set_verified_failed: %w", err)
	}

	return nil
}

// ── Role Repository ──────────────────────────────────────────────────────────

// PostgresRoleRepository implements the RoleRepository interface.
type PostgresRoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new PostgreSQL implementation of RoleRepository.
func NewRoleRepository(pool *pgxpool.Pool) *PostgresRoleRepository {
	return &PostgresRoleRepository{pool: pool}
}

// FindByName retrieves a role by its unique name.
func (repository *PostgresRoleRepository) FindByName(ctx context.Context, name string) (*Role, error) {
	const query = "SELECT id, name, createdat FROM users.role WHERE name = $1"

	role := &Role{}
	err := repository.pool.QueryRow(ctx, query, name).Scan(&role.ID, &role.Name, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Role")
		}
		return nil, fmt.Errorf("postgres_role_repo_find_by_name_failed: %w", err)
	}

	return role, nil
}

// Assign attaches a role to an account. Idempotent.
func (repository *PostgresRoleRepository) Assign(ctx context.Context, accountID, roleID string) error {
	const query = `
		INSERT INTO users.account_role (accountid, roleid)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	_, err := repository.pool.Exec(ctx, query, accountID, roleID)
	return dberr.Wrap(err, "postgres_role_repo_assign_failed")
}

// ── Magic Link Token Repository ──────────────────────────────────────────────

// PostgresMagicLinkTokenRepository implements the MagicLinkTokenRepository interface.
type PostgresMagicLinkTokenRepository struct {
	pool *pgxpool.Pool
}

// NewMagicLinkTokenRepository creates a new PostgreSQL implementation of MagicLinkTokenRepository.
func NewMagicLinkTokenRepository(pool *pgxpool.Pool) *PostgresMagicLinkTokenRepository {
	return &PostgresMagicLinkTokenRepository{pool: pool}
}

// Create persists a new token record into the auth.magic_link_token table.
func (repository *PostgresMagicLinkTokenRepository) Create(ctx context.Context, token *MagicLinkToken) error {
	const query = `
		INSERT INTO auth.magic_link_token (
			id, email, tokenhash, lookupkey, used, expiresat, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(ctx, query,
		token.ID,
		token.Email,
		token.TokenHash,
		token.LookupKey,
		token.Used,
		token.ExpiresAt,
		token.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_magic_link_repo_create_failed: %w", err)
	}

	return nil
}

// FindCandidates retrieves all unused, unexpired tokens whose lookup key matches.
func (repository *PostgresMagicLinkTokenRepository) FindCandidates(ctx context.Context, lookupKey string) ([]*MagicLinkToken, error) {
	const query = `
		SELECT id, email, tokenhash, lookupkey, used, expiresat, createdat
		FROM auth.magic_link_token
		WHERE lookupkey = $1 AND used = FALSE AND expiresat > NOW()`

	rows, err := repository.pool.Query(ctx, query, lookupKey)
	if err != nil {
		return nil, fmt.Errorf("postgres_magic_link_repo_find_candidates_failed: %w", err)
	}
	defer rows.Close()

	var candidates []*MagicLinkToken
	for rows.Next() {
		token := &MagicLinkToken{}
		err := rows.Scan(
			&token.ID,
			&token.Email,
			&token.TokenHash,
			&token.LookupKey,
			&token.Used,
			&token.ExpiresAt,
			&token.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres_magic_link_repo_scan_failed: %w", err)
		}
		candidates = append(candidates, token)
	}

	return candidates, rows.Err()
}

// MarkUsed flips the used flag exactly once.
//
// The WHERE clause guards against double redemption: a second caller sees
// zero affected rows and receives [apperr.NotFound].
func (repository *PostgresMagicLinkTokenRepository) MarkUsed(ctx context.Context, tokenID string) error {
	const query = "UPDATE auth.magic_link_token SET used = TRUE WHERE id = $1 AND used = FALSE"

	tag, err := repository.pool.Exec(ctx, query, tokenID)
	if err != nil {
		return fmt.Errorf("postgres_magic_link_repo_mark_used_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Unused sign-in token")
	}

	return nil
}

// DeleteUnusedByEmail removes every outstanding unused token for the email.
func (repository *PostgresMagicLinkTokenRepository) DeleteUnusedByEmail(ctx context.Context, email string) error {
	const query = "DELETE FROM auth.magic_link_token WHERE email = $1 AND used = FALSE"

	_, err := repository.pool.Exec(ctx, query, email)
	if err != nil {
		return fmt.Errorf("postgres_magic_link_repo_delete_unused_failed: %w", err)
	}

	return nil
}

// Delete removes a specific token record.
func (repository *PostgresMagicLinkTokenRepository) Delete(ctx context.Context, tokenID string) error {
	const query = "DELETE FROM auth.magic_link_token WHERE id = $1"

	_, err := repository.pool.Exec(ctx, query, tokenID)
	if err != nil {
		return fmt.Errorf("postgres_magic_link_repo_delete_failed: %w", err)
	}

	return nil
}

// DeleteExpired permanently removes all tokens past their expiry.
func (repository *PostgresMagicLinkTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = "DELETE FROM auth.magic_link_token WHERE expiresat <= NOW()"

	tag, err := repository.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("postgres_magic_link_repo_delete_expired_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ── API Key Repository ───────────────────────────────────────────────────────

// PostgresAPIKeyRepository implements the APIKeyRepository interface.
type PostgresAPIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository creates a new PostgreSQL implementation of APIKeyRepository.
func NewAPIKeyRepository(pool *pgxpool.Pool) *PostgresAPIKeyRepository {
	return &PostgresAPIKeyRepository{pool: pool}
}

// Create persists a new key record into the auth.api_key table.
func (repository *PostgresAPIKeyRepository) Create(ctx context.Context, key *APIKey) error {
	const query = `
		INSERT INTO auth.api_key (id, secret, ownerid, label, createdat)
		VALUES ($1, $2, $3, $4, $5)`

	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(ctx, query,
		key.ID,
		key.Secret,
		key.OwnerID,
		key.Label,
		key.CreatedAt,
	)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("API key collision, retry the request")
		}
		return fmt.Errorf("postgres_api_key_repo_create_failed: %w", err)
	}

	return nil
}

// FindBySecret retrieves a key by its unique secret value.
func (repository *PostgresAPIKeyRepository) FindBySecret(ctx context.Context, secret string) (*APIKey, error) {
	const query = `
		SELECT id, secret, ownerid, label, createdat
		FROM auth.api_key
		WHERE secret = $1`

	key := &APIKey{}
	err := repository.pool.QueryRow(ctx, query, secret).Scan(
		&key.ID,
		&key.Secret,
		&key.OwnerID,
		&key.Label,
		&key.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("API key")
		}
		return nil, fmt.Errorf("postgres_api_key_repo_find_failed: %w", err)
	}

	return key, nil
}

// ListByOwner retrieves every key belonging to the account, newest first.
func (repository *PostgresAPIKeyRepository) ListByOwner(ctx context.Context, ownerID string) ([]*APIKey, error) {
	const query = `
		SELECT id, secret, ownerid, label, createdat
		FROM auth.api_key
		WHERE ownerid = $1
		ORDER BY createdat DESC`

	rows, err := repository.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres_api_key_repo_list_failed: %w", err)
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		key := &APIKey{}
		err := rows.Scan(&key.ID, &key.Secret, &key.OwnerID, &key.Label, &key.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres_api_key_repo_scan_failed: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// Delete permanently revokes a key.
func (repository *PostgresAPIKeyRepository) Delete(ctx context.Context, keyID string) error {
	const query = "DELETE FROM auth.api_key WHERE id = $1"

	tag, err := repository.pool.Exec(ctx, query, keyID)
	if err != nil {
		return fmt.Errorf("postgres_api_key_repo_delete_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("API key")
	}

	return nil
}
