package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/abrezinsky/ecobingo/internal/models"
)

// Repository provides data access methods
type Repository struct {
	db *sql.DB
}

// NewSubmission carries the fields written when a submission is created or
// replaced
type NewSubmission struct {
	UserID           int64
	TaskID           int64
	PhotoKey         string
	PhotoContentType string
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// SQLite works best with a single connection. Every transaction below
	// relies on this to serialize writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	if err := repo.migrate(); err != nil {
		return nil, err
	}

	return repo, nil
}

// DB returns the underlying database connection
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			role TEXT NOT NULL DEFAULT 'player',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			description TEXT NOT NULL,
			points INTEGER NOT NULL DEFAULT 0,
			requires_upload BOOLEAN NOT NULL DEFAULT 0,
			requires_scan BOOLEAN NOT NULL DEFAULT 0,
			latitude REAL,
			longitude REAL
		)`,
		`CREATE TABLE IF NOT EXISTS submissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			task_id INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			completed BOOLEAN NOT NULL DEFAULT 0,
			photo_key TEXT,
			photo_content_type TEXT,
			rejection_reason TEXT,
			bonus_points INTEGER NOT NULL DEFAULT 0,
			submitted_at DATETIME NOT NULL,
			reviewed_at DATETIME,
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (task_id) REFERENCES tasks(id),
			UNIQUE(user_id, task_id)
		)`,
		`CREATE TABLE IF NOT EXISTS patterns (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			bonus_points INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS badges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			pattern_code TEXT NOT NULL,
			awarded_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (pattern_code) REFERENCES patterns(code),
			UNIQUE(user_id, pattern_code)
		)`,
		`CREATE TABLE IF NOT EXISTS leaderboard (
			user_id INTEGER PRIMARY KEY,
			points INTEGER NOT NULL DEFAULT 0,
			monthly_points INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_submitted ON submissions(submitted_at)`,
		`CREATE INDEX IF NOT EXISTS idx_badges_user ON badges(user_id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn inside a transaction. fn must only use tx: the pool holds a
// single connection, so touching r.db inside fn would block forever.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// creditPoints adds points to both lifetime and monthly totals
func creditPoints(ctx context.Context, tx *sql.Tx, userID int64, points int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO leaderboard (user_id, points, monthly_points)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			points = points + excluded.points,
			monthly_points = monthly_points + excluded.monthly_points
	`, userID, points, points)
	return err
}

// ==================== User Methods ====================

// EnsureUser returns the user with the given name, creating it if needed.
// The stored role is updated to match.
func (r *Repository) EnsureUser(ctx context.Context, username string, role models.Role) (*models.User, error) {
	var user *models.User
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (username, role) VALUES (?, ?)
			ON CONFLICT(username) DO UPDATE SET role = excluded.role
		`, username, role.String())
		if err != nil {
			return err
		}

		u := models.User{Username: username, Role: role}
		if err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&u.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO leaderboard (user_id) VALUES (?)`, u.ID); err != nil {
			return err
		}
		user = &u
		return nil
	})
	return user, err
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `SELECT id, username, role FROM users WHERE id = ?`, id))
}

// GetUserByUsername retrieves a user by name
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `SELECT id, username, role FROM users WHERE username = ?`, username))
}

func (r *Repository) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.Username, &role)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.Role, err = models.ParseRole(role); err != nil {
		return nil, err
	}
	return &u, nil
}

// ==================== Task Methods ====================

const taskColumns = `id, description, points, requires_upload, requires_scan, latitude, longitude`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(s rowScanner) (models.Task, error) {
	var t models.Task
	var lat, lon sql.NullFloat64
	if err := s.Scan(&t.ID, &t.Description, &t.Points, &t.RequiresUpload, &t.RequiresScan, &lat, &lon); err != nil {
		return t, err
	}
	if lat.Valid && lon.Valid {
		t.Latitude = &lat.Float64
		t.Longitude = &lon.Float64
	}
	return t, nil
}

// ListTasks returns the full catalog ordered by ascending ID
func (r *Repository) ListTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTask retrieves a task by ID
func (r *Repository) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func insertTask(ctx context.Context, exec interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, t models.Task) (int64, error) {
	res, err := exec.ExecContext(ctx, `
		INSERT INTO tasks (description, points, requires_upload, requires_scan, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.Description, t.Points, t.RequiresUpload, t.RequiresScan, t.Latitude, t.Longitude)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CreateTask adds a task to the catalog
func (r *Repository) CreateTask(ctx context.Context, task models.Task) (int64, error) {
	return insertTask(ctx, r.db, task)
}

// SeedTasks inserts tasks only when the catalog is empty. Returns the number
// of tasks inserted.
func (r *Repository) SeedTasks(ctx context.Context, tasks []models.Task) (int, error) {
	inserted := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		for _, t := range tasks {
			if _, err := insertTask(ctx, tx, t); err != nil {
				return fmt.Errorf("seed task %q: %w", t.Description, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ==================== Submission Methods ====================

const submissionColumns = `id, user_id, task_id, status, completed, photo_key, photo_content_type,
	rejection_reason, bonus_points, submitted_at, reviewed_at`

func scanSubmission(s rowScanner) (models.Submission, error) {
	var sub models.Submission
	var status string
	var photoKey, contentType, reason sql.NullString
	var reviewedAt sql.NullTime
	err := s.Scan(&sub.ID, &sub.UserID, &sub.TaskID, &status, &sub.Completed, &photoKey, &contentType,
		&reason, &sub.BonusPoints, &sub.SubmittedAt, &reviewedAt)
	if err != nil {
		return sub, err
	}
	sub.Status = models.SubmissionStatus(status)
	sub.PhotoKey = photoKey.String
	sub.PhotoContentType = contentType.String
	sub.RejectionReason = reason.String
	if reviewedAt.Valid {
		sub.ReviewedAt = &reviewedAt.Time
	}
	return sub, nil
}

// GetSubmission retrieves the submission for a user and task
func (r *Repository) GetSubmission(ctx context.Context, userID, taskID int64) (*models.Submission, error) {
	sub, err := scanSubmission(r.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE user_id = ? AND task_id = ?`, userID, taskID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubmissionByID retrieves a submission by ID
func (r *Repository) GetSubmissionByID(ctx context.Context, id int64) (*models.Submission, error) {
	sub, err := scanSubmission(r.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// upsertSubmission creates the (user, task) row or replaces a rejected one.
// Returns ErrDuplicate when an existing row is pending or approved.
func upsertSubmission(ctx context.Context, tx *sql.Tx, sub NewSubmission, status models.SubmissionStatus, now time.Time) (int64, error) {
	completed := status == models.StatusApproved
	var reviewedAt any
	if completed {
		reviewedAt = now
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO submissions (user_id, task_id, status, completed, photo_key, photo_content_type,
			rejection_reason, bonus_points, submitted_at, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, 0, ?, ?)
		ON CONFLICT(user_id, task_id) DO UPDATE SET
			status = excluded.status,
			completed = excluded.completed,
			photo_key = excluded.photo_key,
			photo_content_type = excluded.photo_content_type,
			rejection_reason = NULL,
			bonus_points = 0,
			submitted_at = excluded.submitted_at,
			reviewed_at = excluded.reviewed_at
		WHERE submissions.status = 'rejected'
	`, sub.UserID, sub.TaskID, string(status), completed, nullString(sub.PhotoKey), nullString(sub.PhotoContentType), now, reviewedAt)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrDuplicate
	}

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM submissions WHERE user_id = ? AND task_id = ?`, sub.UserID, sub.TaskID).Scan(&id)
	return id, err
}

// SavePendingSubmission stores a submission awaiting review
func (r *Repository) SavePendingSubmission(ctx context.Context, sub NewSubmission) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = upsertSubmission(ctx, tx, sub, models.StatusPending, time.Now().UTC())
		return err
	})
	return id, err
}

// SaveApprovedSubmission stores an auto-approved submission and credits
// points in one transaction
func (r *Repository) SaveApprovedSubmission(ctx context.Context, sub NewSubmission, points int) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = upsertSubmission(ctx, tx, sub, models.StatusApproved, time.Now().UTC())
		if err != nil {
			return err
		}
		return creditPoints(ctx, tx, sub.UserID, points)
	})
	return id, err
}

// reviewMiss resolves why a conditional review update touched no rows
func reviewMiss(ctx context.Context, tx *sql.Tx, userID, taskID int64) error {
	var completed bool
	err := tx.QueryRowContext(ctx, `SELECT completed FROM submissions WHERE user_id = ? AND task_id = ?`, userID, taskID).Scan(&completed)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrAlreadyCompleted
}

// ApproveSubmission marks the submission completed and credits points.
// Returns ErrAlreadyCompleted if another approval got there first.
func (r *Repository) ApproveSubmission(ctx context.Context, userID, taskID int64, points int) (*models.Submission, error) {
	var sub models.Submission
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE submissions
			SET status = 'approved', completed = 1, rejection_reason = NULL, reviewed_at = ?
			WHERE user_id = ? AND task_id = ? AND completed = 0
		`, time.Now().UTC(), userID, taskID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return reviewMiss(ctx, tx, userID, taskID)
		}

		if err := creditPoints(ctx, tx, userID, points); err != nil {
			return err
		}

		sub, err = scanSubmission(tx.QueryRowContext(ctx,
			`SELECT `+submissionColumns+` FROM submissions WHERE user_id = ? AND task_id = ?`, userID, taskID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// RejectSubmission marks a not-yet-completed submission rejected
func (r *Repository) RejectSubmission(ctx context.Context, userID, taskID int64, reason string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE submissions
			SET status = 'rejected', completed = 0, rejection_reason = ?, reviewed_at = ?
			WHERE user_id = ? AND task_id = ? AND completed = 0
		`, nullString(reason), time.Now().UTC(), userID, taskID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return reviewMiss(ctx, tx, userID, taskID)
		}
		return nil
	})
}

// ListPendingSubmissions returns the review queue, oldest first
func (r *Repository) ListPendingSubmissions(ctx context.Context) ([]models.PendingSubmission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.task_id, s.status, s.completed, s.photo_key, s.photo_content_type,
			s.rejection_reason, s.bonus_points, s.submitted_at, s.reviewed_at,
			u.username, t.description, t.points
		FROM submissions s
		JOIN users u ON u.id = s.user_id
		JOIN tasks t ON t.id = s.task_id
		WHERE s.status = 'pending'
		ORDER BY s.submitted_at, s.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []models.PendingSubmission
	for rows.Next() {
		var p models.PendingSubmission
		var status string
		var photoKey, contentType, reason sql.NullString
		var reviewedAt sql.NullTime
		err := rows.Scan(&p.ID, &p.UserID, &p.TaskID, &status, &p.Completed, &photoKey, &contentType,
			&reason, &p.BonusPoints, &p.SubmittedAt, &reviewedAt,
			&p.Username, &p.TaskDescription, &p.TaskPoints)
		if err != nil {
			return nil, err
		}
		p.Status = models.SubmissionStatus(status)
		p.PhotoKey = photoKey.String
		p.PhotoContentType = contentType.String
		p.RejectionReason = reason.String
		p.HasPhoto = photoKey.Valid && photoKey.String != ""
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// ListRecentPhotoSubmissions returns up to limit submissions with a stored
// photo, most recent first. userID 0 means every user.
func (r *Repository) ListRecentPhotoSubmissions(ctx context.Context, userID int64, limit int) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
		WHERE photo_key IS NOT NULL AND photo_key != ''`
	args := []any{}
	if userID != 0 {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY submitted_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ListCompletedTaskIDs returns the IDs of tasks the user has completed
func (r *Repository) ListCompletedTaskIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT task_id FROM submissions WHERE user_id = ? AND completed = 1 ORDER BY task_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListUserTaskStatuses returns every task with the user's submission state
func (r *Repository) ListUserTaskStatuses(ctx context.Context, userID int64) ([]models.UserTaskStatus, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.description, t.points, t.requires_upload, t.requires_scan, t.latitude, t.longitude,
			s.status, s.completed, s.rejection_reason
		FROM tasks t
		LEFT JOIN submissions s ON s.task_id = t.id AND s.user_id = ?
		ORDER BY t.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []models.UserTaskStatus
	for rows.Next() {
		var st models.UserTaskStatus
		var lat, lon sql.NullFloat64
		var status, reason sql.NullString
		var completed sql.NullBool
		err := rows.Scan(&st.ID, &st.Description, &st.Points, &st.RequiresUpload, &st.RequiresScan, &lat, &lon,
			&status, &completed, &reason)
		if err != nil {
			return nil, err
		}
		if lat.Valid && lon.Valid {
			st.Latitude = &lat.Float64
			st.Longitude = &lon.Float64
		}
		st.Status = models.SubmissionStatus(status.String)
		st.Completed = completed.Bool
		st.RejectionReason = reason.String
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// ==================== Achievement Methods ====================

// ListBadges returns the user's badges in award order
func (r *Repository) ListBadges(ctx context.Context, userID int64) ([]models.Badge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.user_id, b.pattern_code, p.name, p.description, p.bonus_points, b.awarded_at
		FROM badges b
		JOIN patterns p ON p.code = b.pattern_code
		WHERE b.user_id = ?
		ORDER BY b.awarded_at, b.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var badges []models.Badge
	for rows.Next() {
		var b models.Badge
		var code string
		var desc sql.NullString
		if err := rows.Scan(&b.UserID, &code, &b.Name, &desc, &b.BonusPoints, &b.AwardedAt); err != nil {
			return nil, err
		}
		b.PatternCode = models.PatternCode(code)
		b.Description = desc.String
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

// GrantBadge awards the pattern to the user and credits its bonus, all in
// one transaction. The pattern row is created from the given definition the
// first time it is awarded; an existing row's bonus wins. Returns false if
// the user already held the badge.
func (r *Repository) GrantBadge(ctx context.Context, userID int64, pattern models.Pattern) (bool, error) {
	granted := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO patterns (code, name, description, bonus_points) VALUES (?, ?, ?, ?)
			ON CONFLICT(code) DO NOTHING
		`, string(pattern.Code), pattern.Name, pattern.Description, pattern.BonusPoints)
		if err != nil {
			return err
		}

		var bonus int
		if err := tx.QueryRowContext(ctx, `SELECT bonus_points FROM patterns WHERE code = ?`, string(pattern.Code)).Scan(&bonus); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO badges (user_id, pattern_code, awarded_at) VALUES (?, ?, ?)
			ON CONFLICT(user_id, pattern_code) DO NOTHING
		`, userID, string(pattern.Code), time.Now().UTC())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		granted = true
		return creditPoints(ctx, tx, userID, bonus)
	})
	if err != nil {
		return false, err
	}
	return granted, nil
}

// AddCompletionBonus credits bonus to the user's totals and records it on
// their most recently completed submission
func (r *Repository) AddCompletionBonus(ctx context.Context, userID int64, bonus int) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE submissions SET bonus_points = bonus_points + ?
			WHERE id = (
				SELECT id FROM submissions
				WHERE user_id = ? AND completed = 1
				ORDER BY reviewed_at DESC, id DESC
				LIMIT 1
			)
		`, bonus, userID)
		if err != nil {
			return err
		}
		return creditPoints(ctx, tx, userID, bonus)
	})
}

// ==================== Leaderboard Methods ====================

// GetLeaderboardEntry returns the user's totals
func (r *Repository) GetLeaderboardEntry(ctx context.Context, userID int64) (*models.LeaderboardEntry, error) {
	var e models.LeaderboardEntry
	err := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, COALESCE(l.points, 0), COALESCE(l.monthly_points, 0)
		FROM users u
		LEFT JOIN leaderboard l ON l.user_id = u.id
		WHERE u.id = ?
	`, userID).Scan(&e.UserID, &e.Username, &e.Points, &e.MonthlyPoints)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) topBy(ctx context.Context, column string, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, l.points, l.monthly_points
		FROM leaderboard l
		JOIN users u ON u.id = l.user_id
		ORDER BY l.`+column+` DESC, u.username
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Points, &e.MonthlyPoints); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TopLifetime returns the highest lifetime totals
func (r *Repository) TopLifetime(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return r.topBy(ctx, "points", limit)
}

// TopMonthly returns the highest monthly totals
func (r *Repository) TopMonthly(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return r.topBy(ctx, "monthly_points", limit)
}

// ResetMonthlyPoints zeroes every monthly total. Returns the rows changed.
func (r *Repository) ResetMonthlyPoints(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE leaderboard SET monthly_points = 0 WHERE monthly_points != 0`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
