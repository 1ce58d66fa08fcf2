package sqlstore

import (
	"context"
	"fmt"

	user "github.com/jcmexdev/storefront/internal/user-service/domain"
)

func (c *conn) GetUser(ctx context.Context, id string) (*user.User, error) {
	const q = `
		SELECT id, name, email, role, phone, address, is_blocked, created_at
		FROM   users
		WHERE  id = ?`

	var u user.User
	err := c.queryRow(ctx, q, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.Role, &u.Phone, &u.Address, &u.IsBlocked, scanTime(&u.CreatedAt),
	)
	if err != nil {
		return nil, classify(fmt.Sprintf("get user %q", id), err)
	}
	return &u, nil
}

func (c *conn) CreateUser(ctx context.Context, u *user.User) error {
	const q = `
		INSERT INTO users (id, name, email, role, phone, address, is_blocked, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := c.exec(ctx, fmt.Sprintf("create user %q", u.Email), q,
		u.ID, u.Name, u.Email, string(u.Role), u.Phone, u.Address, u.IsBlocked, c.ts(u.CreatedAt))
	return err
}

func (c *conn) ListUsers(ctx context.Context, role user.Role) ([]user.User, error) {
	const q = `
		SELECT id, name, email, role, phone, address, is_blocked, created_at
		FROM   users
		WHERE  role = ?
		ORDER  BY created_at, id`

	rows, err := c.query(ctx, q, string(role))
	if err != nil {
		return nil, classify("list users", err)
	}
	defer rows.Close()

	var out []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(
			&u.ID, &u.Name, &u.Email, &u.Role, &u.Phone, &u.Address, &u.IsBlocked, scanTime(&u.CreatedAt),
		); err != nil {
			return nil, classify("scan user", err)
		}
		out = append(out, u)
	}
	return out, classify("list users", rows.Err())
}
