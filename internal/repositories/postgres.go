package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/leo-rullani/backend-video-flix/internal/auth"
	"github.com/leo-rullani/backend-video-flix/internal/db"
	"github.com/leo-rullani/backend-video-flix/internal/models"
)

const userColumns = `id, email, password_hash, is_active, is_staff, last_login, created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record and returns it with its generated id.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        INSERT INTO users (email, password_hash, is_active, is_staff)
        VALUES ($1, $2, $3, $4)
        RETURNING `+userColumns,
		user.Email, user.Password, user.IsActive, user.IsStaff)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, ErrConflict
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	return created, nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// FindByID fetches a user by primary key.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id int64) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, query string, arg any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, errUserNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

// SetActive marks the account as activated.
func (r *PostgresUserRepository) SetActive(ctx context.Context, id int64) error {
	return r.update(ctx, `UPDATE users SET is_active = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

// SetPassword replaces the stored password hash.
func (r *PostgresUserRepository) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	return r.update(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
}

// TouchLastLogin records a successful login.
func (r *PostgresUserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.update(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at.UTC())
}

func (r *PostgresUserRepository) update(ctx context.Context, query string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return errUserNotFound
	}

	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user      models.User
		lastLogin sql.NullTime
	)
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.IsActive, &user.IsStaff, &lastLogin, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return models.User{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		user.LastLogin = &t
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

const videoColumns = `id, title, description, category, source_path, thumbnail, created_at, updated_at`

// PostgresVideoRepository provides PostgreSQL-backed persistence for catalog videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        INSERT INTO videos (title, description, category, source_path, thumbnail)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING `+videoColumns,
		video.Title, video.Description, video.Category, video.SourcePath, video.Thumbnail)

	created, err := scanVideo(row)
	if err != nil {
		return models.Video{}, fmt.Errorf("insert video: %w", err)
	}
	return created, nil
}

// Get loads a single video.
func (r *PostgresVideoRepository) Get(ctx context.Context, id int64) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	video, err := scanVideo(conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}
	return video, nil
}

// List returns every video, newest first.
func (r *PostgresVideoRepository) List(ctx context.Context) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

// UpdateMetadata applies the non-nil fields of meta. Source and thumbnail are never touched.
func (r *PostgresVideoRepository) UpdateMetadata(ctx context.Context, id int64, meta models.VideoMetadata) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE videos
        SET title = COALESCE($2::TEXT, title),
            description = COALESCE($3::TEXT, description),
            category = COALESCE($4::TEXT, category),
            updated_at = NOW()
        WHERE id = $1
        RETURNING `+videoColumns,
		id, meta.Title, meta.Description, meta.Category)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("update video: %w", err)
	}
	return video, nil
}

// Delete removes the record and returns it so that its files can be cleaned up.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id int64) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	video, err := scanVideo(conn.QueryRow(ctx, `DELETE FROM videos WHERE id = $1 RETURNING `+videoColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("delete video: %w", err)
	}
	return video, nil
}

// Exists reports whether a video with the id is present.
func (r *PostgresVideoRepository) Exists(ctx context.Context, id int64) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check video exists: %w", err)
	}
	return exists, nil
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	if err := row.Scan(&video.ID, &video.Title, &video.Description, &video.Category, &video.SourcePath, &video.Thumbnail, &video.CreatedAt, &video.UpdatedAt); err != nil {
		return models.Video{}, err
	}
	video.CreatedAt = video.CreatedAt.UTC()
	video.UpdatedAt = video.UpdatedAt.UTC()
	return video, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
var _ auth.UserLookup = (*PostgresUserRepository)(nil)
