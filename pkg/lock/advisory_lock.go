package lock

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLock はPostgreSQLのセッションスコープのアドバイザリロックを保持します
// 解放されるまで専用コネクションを占有します
type AdvisoryLock struct {
	conn   *pgxpool.Conn
	lockID int64
}

// GenerateLockID は文字列からロックIDを生成します
func GenerateLockID(parts ...string) int64 {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
	}
	hash := h.Sum(nil)

	// ハッシュの最初の8バイトをint64として使用
	var id int64
	for i := range 8 {
		id = (id << 8) | int64(hash[i])
	}

	return id
}

// Acquire はアドバイザリロックを取得します（pg_advisory_lock）
// 他のプロセスが同じIDを保持している間はブロックします
func Acquire(ctx context.Context, pool *pgxpool.Pool, lockID int64) (*AdvisoryLock, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for advisory lock: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}

	return &AdvisoryLock{
		conn:   conn,
		lockID: lockID,
	}, nil
}

// Release はアドバイザリロックを解放し、コネクションをプールへ返します
func (l *AdvisoryLock) Release(ctx context.Context) error {
	defer l.conn.Release()

	if _, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.lockID); err != nil {
		return fmt.Errorf("failed to release advisory lock: %w", err)
	}
	return nil
}
