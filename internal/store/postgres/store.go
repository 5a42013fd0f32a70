package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lameck50/backend-kami/internal/tracking"
	"github.com/lameck50/backend-kami/internal/users"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store implements the tracking, geofence and user stores on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) SavePosition(ctx context.Context, p tracking.Position) (tracking.Position, error) {
	agentID, ok := parseID(p.AgentID)
	if !ok {
		return tracking.Position{}, tracking.ErrAgentNotFound
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (id, agent_id, latitude, longitude, captured_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, agentID, p.Lat, p.Lon, p.CapturedAt)
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return tracking.Position{}, tracking.ErrAgentNotFound
		}
		return tracking.Position{}, fmt.Errorf("insert position: %w", err)
	}
	return p, nil
}

func (s *Store) LatestPositions(ctx context.Context, agentID string, n int) ([]tracking.Position, error) {
	id, ok := parseID(agentID)
	if !ok || n <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, agent_id, latitude, longitude, captured_at
		 FROM positions
		 WHERE agent_id = $1
		 ORDER BY captured_at DESC, seq DESC
		 LIMIT $2`, id, n)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (tracking.Position, error) {
		var (
			pid, aid pgtype.UUID
			p        tracking.Position
		)
		if err := row.Scan(&pid, &aid, &p.Lat, &p.Lon, &p.CapturedAt); err != nil {
			return tracking.Position{}, err
		}
		p.ID = uuidToString(pid)
		p.AgentID = uuidToString(aid)
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan positions: %w", err)
	}
	return out, nil
}

func (s *Store) GetStatus(ctx context.Context, agentID string) (tracking.Status, error) {
	id, ok := parseID(agentID)
	if !ok {
		return "", tracking.ErrAgentNotFound
	}

	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM users WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", tracking.ErrAgentNotFound
		}
		return "", fmt.Errorf("get status: %w", err)
	}
	return tracking.Status(status), nil
}

func (s *Store) SetStatus(ctx context.Context, agentID string, status tracking.Status) error {
	id, ok := parseID(agentID)
	if !ok {
		return tracking.ErrAgentNotFound
	}

	tag, err := s.pool.Exec(ctx, `UPDATE users SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tracking.ErrAgentNotFound
	}
	return nil
}

func (s *Store) ListAgents(ctx context.Context, role users.Role) ([]tracking.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, status FROM users WHERE role = $1 ORDER BY id`, string(role))
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (tracking.Agent, error) {
		var (
			id     pgtype.UUID
			a      tracking.Agent
			status string
		)
		if err := row.Scan(&id, &a.Name, &status); err != nil {
			return tracking.Agent{}, err
		}
		a.ID = uuidToString(id)
		a.Status = tracking.Status(status)
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan agents: %w", err)
	}
	return out, nil
}

const geofenceColumns = `id, owner_id, name, center_lat, center_lon, radius_meters,
	alert_on_enter, alert_on_exit, created_at`

func (s *Store) ListGeofences(ctx context.Context) ([]tracking.Geofence, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+geofenceColumns+` FROM geofences ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query geofences: %w", err)
	}
	return collectGeofences(rows)
}

func (s *Store) ListGeofencesByOwner(ctx context.Context, ownerID string) ([]tracking.Geofence, error) {
	id, ok := parseID(ownerID)
	if !ok {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+geofenceColumns+` FROM geofences WHERE owner_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("query geofences: %w", err)
	}
	return collectGeofences(rows)
}

func (s *Store) CreateGeofence(ctx context.Context, g tracking.Geofence) (tracking.Geofence, error) {
	ownerID, ok := parseID(g.OwnerID)
	if !ok {
		return tracking.Geofence{}, users.ErrUserNotFound
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO geofences (`+geofenceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		g.ID, ownerID, g.Name, g.CenterLat, g.CenterLon, g.RadiusMeters,
		g.AlertOnEnter, g.AlertOnExit, g.CreatedAt)
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return tracking.Geofence{}, users.ErrUserNotFound
		}
		return tracking.Geofence{}, fmt.Errorf("insert geofence: %w", err)
	}
	return g, nil
}

func (s *Store) GetGeofence(ctx context.Context, id string) (tracking.Geofence, error) {
	gid, ok := parseID(id)
	if !ok {
		return tracking.Geofence{}, tracking.ErrGeofenceNotFound
	}

	rows, err := s.pool.Query(ctx, `SELECT `+geofenceColumns+` FROM geofences WHERE id = $1`, gid)
	if err != nil {
		return tracking.Geofence{}, fmt.Errorf("query geofence: %w", err)
	}
	out, err := collectGeofences(rows)
	if err != nil {
		return tracking.Geofence{}, err
	}
	if len(out) == 0 {
		return tracking.Geofence{}, tracking.ErrGeofenceNotFound
	}
	return out[0], nil
}

func (s *Store) DeleteGeofence(ctx context.Context, id string) error {
	gid, ok := parseID(id)
	if !ok {
		return tracking.ErrGeofenceNotFound
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM geofences WHERE id = $1`, gid)
	if err != nil {
		return fmt.Errorf("delete geofence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tracking.ErrGeofenceNotFound
	}
	return nil
}

func collectGeofences(rows pgx.Rows) ([]tracking.Geofence, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (tracking.Geofence, error) {
		var (
			id, owner pgtype.UUID
			g         tracking.Geofence
		)
		err := row.Scan(&id, &owner, &g.Name, &g.CenterLat, &g.CenterLon, &g.RadiusMeters,
			&g.AlertOnEnter, &g.AlertOnExit, &g.CreatedAt)
		if err != nil {
			return tracking.Geofence{}, err
		}
		g.ID = uuidToString(id)
		g.OwnerID = uuidToString(owner)
		return g, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan geofences: %w", err)
	}
	return out, nil
}

const userColumns = `id, name, email, password_hash, role, post_name, created_at`

func (s *Store) CreateUser(ctx context.Context, u users.User) (users.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	postName := pgtype.Text{String: u.PostName, Valid: u.PostName != ""}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, lower($3), $4, $5, $6, $7)`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), postName, u.CreatedAt)
	if err != nil {
		if hasCode(err, codeUniqueViolation) {
			return users.User{}, users.ErrEmailExists
		}
		return users.User{}, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) GetUser(ctx context.Context, id string) (users.User, error) {
	uid, ok := parseID(id)
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, uid)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (users.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email)
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (users.User, error) {
	var (
		id       pgtype.UUID
		postName pgtype.Text
		role     string
		u        users.User
	)
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&id, &u.Name, &u.Email, &u.PasswordHash, &role, &postName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return users.User{}, users.ErrUserNotFound
		}
		return users.User{}, fmt.Errorf("get user: %w", err)
	}
	u.ID = uuidToString(id)
	u.Role = users.Role(role)
	u.PostName = postName.String
	return u, nil
}

func (s *Store) AddDeviceToken(ctx context.Context, userID, token string) error {
	uid, ok := parseID(userID)
	if !ok {
		return users.ErrUserNotFound
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO device_tokens (user_id, token) VALUES ($1, $2)
		 ON CONFLICT (user_id, token) DO NOTHING`, uid, token)
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return users.ErrUserNotFound
		}
		return fmt.Errorf("insert device token: %w", err)
	}
	return nil
}

func (s *Store) DeviceTokensByRole(ctx context.Context, role users.Role) ([]users.DeviceToken, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.user_id, t.token
		 FROM device_tokens t
		 JOIN users u ON u.id = t.user_id
		 WHERE u.role = $1
		 ORDER BY t.user_id, t.token`, string(role))
	if err != nil {
		return nil, fmt.Errorf("query device tokens: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (users.DeviceToken, error) {
		var (
			id pgtype.UUID
			dt users.DeviceToken
		)
		if err := row.Scan(&id, &dt.Token); err != nil {
			return users.DeviceToken{}, err
		}
		dt.UserID = uuidToString(id)
		return dt, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan device tokens: %w", err)
	}
	return out, nil
}

// parseID reports false for ids that cannot exist in a uuid column.
func parseID(id string) (pgtype.UUID, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, false
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, true
}

func uuidToString(id pgtype.UUID) string {
	return uuid.UUID(id.Bytes).String()
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
