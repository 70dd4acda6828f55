package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guildxp/guildxp/internal/domain/member"
)

// The repository must satisfy the domain port; wiring in cmd/bot and
// cmd/worker depends on this assignment compiling.
var _ member.Repository = (*MemberRepository)(nil)

func closedConnection() *Connection {
	return &Connection{closed: true}
}

func TestConnection_ClosedPoolFailsFast(t *testing.T) {
	conn := closedConnection()
	ctx := context.Background()

	assert.ErrorIs(t, conn.Ping(ctx), ErrConnectionClosed)

	_, err := conn.Exec(ctx, `DELETE FROM leaderboard`)
	assert.ErrorIs(t, err, ErrConnectionClosed)

	_, err = conn.Query(ctx, `SELECT 1`)
	assert.ErrorIs(t, err, ErrConnectionClosed)

	_, err = conn.QueryRaw(ctx, `SELECT 1`)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConnection_QueryRowOnClosedPoolDefersToScan(t *testing.T) {
	conn := closedConnection()

	var n int
	err := conn.QueryRow(context.Background(), `SELECT 1`).Scan(&n)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConnection_WithTxOnClosedPool(t *testing.T) {
	conn := closedConnection()

	err := conn.withTx(context.Background(), nil)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}
