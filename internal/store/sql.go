package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Addy-9595/northeasternconnect-backend/internal/crypto"
	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
)

// sqlStore holds the query code shared by the Postgres and SQLite stores.
// Queries are written with ? placeholders and rebound for the driver.
type sqlStore struct {
	db                *sqlx.DB
	now               func() time.Time
	isUniqueViolation func(error) bool
}

func newSQLStore(db *sqlx.DB, isUniqueViolation func(error) bool) *sqlStore {
	return &sqlStore{db: db, now: time.Now, isUniqueViolation: isUniqueViolation}
}

// Close closes the database connection.
func (s *sqlStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) q(query string) string {
	return s.db.Rebind(query)
}

// forUpdate returns a row-lock clause where the driver supports one.
func (s *sqlStore) forUpdate() string {
	if s.db.DriverName() == "pgx" {
		return " FOR UPDATE"
	}
	return ""
}

// timestamp returns the current time at the precision both databases keep.
func (s *sqlStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *sqlStore) count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+table)
	return n, err
}

// in expands a query with a single IN (?) clause over args and rebinds it.
func (s *sqlStore) in(query string, args ...interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return s.q(query), args, nil
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ---------------------------------------------------------------------------
// Users

const userColumns = `id, name, email, password_hash, role, bio, major, department,
	profile_picture, skills, is_verified, created_at, updated_at`

const userRefColumns = `u.id, u.name, u.email, u.profile_picture, u.role`

// CreateUser inserts a user, assigning its ID and timestamps.
func (s *sqlStore) CreateUser(ctx context.Context, u *models.User) error {
	now := s.timestamp()
	u.ID = crypto.NewUUIDv7()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt, u.UpdatedAt = now, now
	if u.Skills == nil {
		u.Skills = models.StringList{}
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :email, :password_hash, :role, :bio, :major, :department,
			:profile_picture, :skills, :is_verified, :created_at, :updated_at)
	`, u)
	if err != nil {
		if s.isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (s *sqlStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *sqlStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *sqlStore) getUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	u := &models.User{}
	if err := s.db.GetContext(ctx, u, s.q(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// ListUsers returns all users, newest first.
func (s *sqlStore) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	return users, err
}

// UpdateProfile applies the non-nil fields of upd and returns the updated user.
func (s *sqlStore) UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate) (*models.User, error) {
	var sets []string
	var args []interface{}
	set := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.Bio != nil {
		set("bio", *upd.Bio)
	}
	if upd.Major != nil {
		set("major", *upd.Major)
	}
	if upd.Department != nil {
		set("department", *upd.Department)
	}
	if upd.ProfilePicture != nil {
		set("profile_picture", *upd.ProfilePicture)
	}
	if upd.Skills != nil {
		set("skills", *upd.Skills)
	}
	set("updated_at", s.timestamp())
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		return nil, err
	}
	if ok, err := rowsAffected(res); err != nil || !ok {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

// DeleteUser removes a user together with their content and social links.
// Messages and conversations are kept.
func (s *sqlStore) DeleteUser(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// GetUserRefs resolves display references for the given IDs. Unknown IDs are
// absent from the result.
func (s *sqlStore) GetUserRefs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserRef, error) {
	refs := make(map[uuid.UUID]models.UserRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	query, args, err := s.in(`SELECT `+userRefColumns+` FROM users u WHERE u.id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []models.UserRef
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		refs[r.ID] = r
	}
	return refs, nil
}

// CountUsers returns the number of registered users.
func (s *sqlStore) CountUsers(ctx context.Context) (int64, error) {
	return s.count(ctx, "users")
}

// ---------------------------------------------------------------------------
// Social graph

// Follow records that followerID follows followeeID.
func (s *sqlStore) Follow(ctx context.Context, followerID, followeeID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?)
	`), followerID, followeeID, s.timestamp())
	if err != nil && s.isUniqueViolation(err) {
		return ErrAlreadyFollowing
	}
	return err
}

// Unfollow removes a follow link, reporting whether one existed.
func (s *sqlStore) Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		DELETE FROM follows WHERE follower_id = ? AND followee_id = ?
	`), followerID, followeeID)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// ListFollowers returns the users following userID.
func (s *sqlStore) ListFollowers(ctx context.Context, userID uuid.UUID) ([]models.UserRef, error) {
	refs := []models.UserRef{}
	err := s.db.SelectContext(ctx, &refs, s.q(`
		SELECT `+userRefColumns+` FROM follows f JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id = ? ORDER BY f.created_at
	`), userID)
	return refs, err
}

// ListFollowing returns the users userID follows.
func (s *sqlStore) ListFollowing(ctx context.Context, userID uuid.UUID) ([]models.UserRef, error) {
	refs := []models.UserRef{}
	err := s.db.SelectContext(ctx, &refs, s.q(`
		SELECT `+userRefColumns+` FROM follows f JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = ? ORDER BY f.created_at
	`), userID)
	return refs, err
}

// AddCertification attaches a certification to a user's profile.
func (s *sqlStore) AddCertification(ctx context.Context, userID uuid.UUID, cert models.Certification) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO user_certifications (id, user_id, platform, certificate_name, issuer,
			completion_date, credential_id, credential_url, verified, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), crypto.NewUUIDv7(), userID, cert.Platform, cert.CertificateName, cert.Issuer,
		cert.CompletionDate, cert.CredentialID, cert.CredentialURL, cert.Verified, cert.Notes, s.timestamp())
	return err
}

// ListCertifications returns a user's certifications in the order they were added.
func (s *sqlStore) ListCertifications(ctx context.Context, userID uuid.UUID) ([]models.Certification, error) {
	certs := []models.Certification{}
	err := s.db.SelectContext(ctx, &certs, s.q(`
		SELECT platform, certificate_name, issuer, completion_date, credential_id,
			credential_url, verified, notes
		FROM user_certifications WHERE user_id = ? ORDER BY created_at, id
	`), userID)
	return certs, err
}

// ---------------------------------------------------------------------------
// Posts

const postColumns = `id, title, content, author_id, tags, image_url, images, created_at, updated_at`

// CreatePost inserts a post, assigning its ID and timestamps.
func (s *sqlStore) CreatePost(ctx context.Context, p *models.Post) error {
	now := s.timestamp()
	p.ID = crypto.NewUUIDv7()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES (:id, :title, :content, :author_id, :tags, :image_url, :images, :created_at, :updated_at)
	`, p)
	return err
}

// GetPost retrieves a post with its author, likes and comments populated.
func (s *sqlStore) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	p := models.Post{}
	if err := s.db.GetContext(ctx, &p, s.q(`SELECT `+postColumns+` FROM posts WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	posts := []models.Post{p}
	if err := s.populatePosts(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// ListPosts returns posts newest first, optionally restricted to one author.
// A limit of zero means no limit.
func (s *sqlStore) ListPosts(ctx context.Context, authorID *uuid.UUID, limit int) ([]models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	var args []interface{}
	if authorID != nil {
		query += ` WHERE author_id = ?`
		args = append(args, *authorID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	posts := []models.Post{}
	if err := s.db.SelectContext(ctx, &posts, s.q(query), args...); err != nil {
		return nil, err
	}
	if err := s.populatePosts(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *sqlStore) populatePosts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(posts))
	byID := make(map[uuid.UUID]*models.Post, len(posts))
	userIDs := make([]uuid.UUID, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		ids[i] = p.ID
		byID[p.ID] = p
		p.Likes = []uuid.UUID{}
		p.Comments = []models.Comment{}
		userIDs = append(userIDs, p.AuthorID)
	}

	query, args, err := s.in(`SELECT post_id, user_id FROM post_likes WHERE post_id IN (?) ORDER BY created_at`, ids)
	if err != nil {
		return err
	}
	var likes []struct {
		PostID uuid.UUID `db:"post_id"`
		UserID uuid.UUID `db:"user_id"`
	}
	if err := s.db.SelectContext(ctx, &likes, query, args...); err != nil {
		return err
	}
	for _, l := range likes {
		byID[l.PostID].Likes = append(byID[l.PostID].Likes, l.UserID)
	}

	query, args, err = s.in(`
		SELECT id, post_id, user_id, text, parent_comment_id, created_at
		FROM post_comments WHERE post_id IN (?) ORDER BY created_at, id
	`, ids)
	if err != nil {
		return err
	}
	var comments []models.Comment
	if err := s.db.SelectContext(ctx, &comments, query, args...); err != nil {
		return err
	}
	for _, c := range comments {
		userIDs = append(userIDs, c.UserID)
	}

	refs, err := s.GetUserRefs(ctx, userIDs)
	if err != nil {
		return err
	}
	for _, c := range comments {
		if ref, ok := refs[c.UserID]; ok {
			c.User = &ref
		}
		byID[c.PostID].Comments = append(byID[c.PostID].Comments, c)
	}
	for i := range posts {
		if ref, ok := refs[posts[i].AuthorID]; ok {
			posts[i].Author = &ref
		}
	}
	return nil
}

// UpdatePost writes the editable fields of p.
func (s *sqlStore) UpdatePost(ctx context.Context, p *models.Post) error {
	p.UpdatedAt = s.timestamp()
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE posts SET title = :title, content = :content, tags = :tags,
			image_url = :image_url, images = :images, updated_at = :updated_at
		WHERE id = :id
	`, p)
	return err
}

// DeletePost removes a post with its likes and comments.
func (s *sqlStore) DeletePost(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM posts WHERE id = ?`), id)
	return err
}

// ToggleLike likes the post for userID, or removes an existing like.
func (s *sqlStore) ToggleLike(ctx context.Context, postID, userID uuid.UUID) (bool, int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`), postID, userID)
	if err != nil {
		return false, 0, err
	}
	removed, err := rowsAffected(res)
	if err != nil {
		return false, 0, err
	}
	if !removed {
		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)
		`), postID, userID, s.timestamp())
		if err != nil {
			return false, 0, err
		}
	}

	var count int
	if err := tx.GetContext(ctx, &count, s.q(`SELECT COUNT(*) FROM post_likes WHERE post_id = ?`), postID); err != nil {
		return false, 0, err
	}
	return !removed, count, tx.Commit()
}

// AddComment inserts a comment, assigning its ID and timestamp.
func (s *sqlStore) AddComment(ctx context.Context, c *models.Comment) error {
	c.ID = crypto.NewUUIDv7()
	c.CreatedAt = s.timestamp()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO post_comments (id, post_id, user_id, text, parent_comment_id, created_at)
		VALUES (:id, :post_id, :user_id, :text, :parent_comment_id, :created_at)
	`, c)
	return err
}

// DeleteComment removes a comment from a post.
func (s *sqlStore) DeleteComment(ctx context.Context, postID, commentID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM post_comments WHERE id = ? AND post_id = ?`), commentID, postID)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// CountPosts returns the number of posts.
func (s *sqlStore) CountPosts(ctx context.Context) (int64, error) {
	return s.count(ctx, "posts")
}

// ---------------------------------------------------------------------------
// Events

const eventColumns = `id, title, description, date, location, organizer_id, max_participants,
	tags, image_url, images, created_at, updated_at`

// CreateEvent inserts an event, assigning its ID and timestamps.
func (s *sqlStore) CreateEvent(ctx context.Context, e *models.Event) error {
	now := s.timestamp()
	e.ID = crypto.NewUUIDv7()
	e.Date = e.Date.UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (:id, :title, :description, :date, :location, :organizer_id, :max_participants,
			:tags, :image_url, :images, :created_at, :updated_at)
	`, e)
	return err
}

// GetEvent retrieves an event with its organizer and participants populated.
func (s *sqlStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e := models.Event{}
	if err := s.db.GetContext(ctx, &e, s.q(`SELECT `+eventColumns+` FROM events WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	events := []models.Event{e}
	if err := s.populateEvents(ctx, events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

// ListEvents returns events by date ascending, optionally restricted to one
// organizer. A limit of zero means no limit.
func (s *sqlStore) ListEvents(ctx context.Context, organizerID *uuid.UUID, limit int) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	var args []interface{}
	if organizerID != nil {
		query += ` WHERE organizer_id = ?`
		args = append(args, *organizerID)
	}
	query += ` ORDER BY date, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	events := []models.Event{}
	if err := s.db.SelectContext(ctx, &events, s.q(query), args...); err != nil {
		return nil, err
	}
	if err := s.populateEvents(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *sqlStore) populateEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(events))
	organizers := make([]uuid.UUID, len(events))
	byID := make(map[uuid.UUID]*models.Event, len(events))
	for i := range events {
		e := &events[i]
		ids[i] = e.ID
		organizers[i] = e.OrganizerID
		byID[e.ID] = e
		e.Participants = []models.UserRef{}
	}

	query, args, err := s.in(`
		SELECT p.event_id, `+userRefColumns+`
		FROM event_participants p JOIN users u ON u.id = p.user_id
		WHERE p.event_id IN (?) ORDER BY p.joined_at, u.id
	`, ids)
	if err != nil {
		return err
	}
	var participants []struct {
		EventID uuid.UUID `db:"event_id"`
		models.UserRef
	}
	if err := s.db.SelectContext(ctx, &participants, query, args...); err != nil {
		return err
	}
	for _, p := range participants {
		byID[p.EventID].Participants = append(byID[p.EventID].Participants, p.UserRef)
	}

	refs, err := s.GetUserRefs(ctx, organizers)
	if err != nil {
		return err
	}
	for i := range events {
		if ref, ok := refs[events[i].OrganizerID]; ok {
			events[i].Organizer = &ref
		}
	}
	return nil
}

// UpdateEvent writes the editable fields of e.
func (s *sqlStore) UpdateEvent(ctx context.Context, e *models.Event) error {
	e.Date = e.Date.UTC()
	e.UpdatedAt = s.timestamp()
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE events SET title = :title, description = :description, date = :date,
			location = :location, max_participants = :max_participants, tags = :tags,
			image_url = :image_url, images = :images, updated_at = :updated_at
		WHERE id = :id
	`, e)
	return err
}

// DeleteEvent removes an event and its participant list.
func (s *sqlStore) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM events WHERE id = ?`), id)
	return err
}

// JoinEvent adds userID to the event. Membership is checked before
// capacity. On Postgres the event row is locked for the transaction so
// concurrent joins cannot overfill it; SQLite runs on a single connection.
func (s *sqlStore) JoinEvent(ctx context.Context, eventID, userID uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var capacity sql.NullInt64
	err = tx.GetContext(ctx, &capacity, s.q(`SELECT max_participants FROM events WHERE id = ?`+s.forUpdate()), eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("lock event: %w", err)
	}

	var joined bool
	if err := tx.GetContext(ctx, &joined, s.q(`
		SELECT EXISTS (SELECT 1 FROM event_participants WHERE event_id = ? AND user_id = ?)
	`), eventID, userID); err != nil {
		return err
	}
	if joined {
		return ErrAlreadyParticipant
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, s.q(`SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`), userID); err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}

	if capacity.Valid {
		var n int64
		if err := tx.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM event_participants WHERE event_id = ?`), eventID); err != nil {
			return err
		}
		if n >= capacity.Int64 {
			return ErrEventFull
		}
	}

	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO event_participants (event_id, user_id) VALUES (?, ?)
	`), eventID, userID); err != nil {
		if s.isUniqueViolation(err) {
			return ErrAlreadyParticipant
		}
		return fmt.Errorf("join event: %w", err)
	}
	return tx.Commit()
}

// LeaveEvent removes userID from the event, reporting whether they had joined.
func (s *sqlStore) LeaveEvent(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		DELETE FROM event_participants WHERE event_id = ? AND user_id = ?
	`), eventID, userID)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// CountEvents returns the number of events.
func (s *sqlStore) CountEvents(ctx context.Context) (int64, error) {
	return s.count(ctx, "events")
}

// ---------------------------------------------------------------------------
// Job comments

const jobCommentColumns = `id, job_id, user_id, text, rating, created_at`

// CreateJobComment inserts a job comment, assigning its ID and timestamp.
func (s *sqlStore) CreateJobComment(ctx context.Context, c *models.JobComment) error {
	c.ID = crypto.NewUUIDv7()
	c.CreatedAt = s.timestamp()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO job_comments (`+jobCommentColumns+`)
		VALUES (:id, :job_id, :user_id, :text, :rating, :created_at)
	`, c)
	return err
}

// GetJobComment retrieves a job comment by ID.
func (s *sqlStore) GetJobComment(ctx context.Context, id uuid.UUID) (*models.JobComment, error) {
	c := &models.JobComment{}
	err := s.db.GetContext(ctx, c, s.q(`SELECT `+jobCommentColumns+` FROM job_comments WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// ListJobComments returns the comments on a job, newest first, with authors populated.
func (s *sqlStore) ListJobComments(ctx context.Context, jobID string) ([]models.JobComment, error) {
	comments := []models.JobComment{}
	err := s.db.SelectContext(ctx, &comments, s.q(`
		SELECT `+jobCommentColumns+` FROM job_comments WHERE job_id = ?
		ORDER BY created_at DESC, id DESC
	`), jobID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(comments))
	for i, c := range comments {
		ids[i] = c.UserID
	}
	refs, err := s.GetUserRefs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		if ref, ok := refs[comments[i].UserID]; ok {
			comments[i].User = &ref
		}
	}
	return comments, nil
}

// DeleteJobComment removes a job comment.
func (s *sqlStore) DeleteJobComment(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM job_comments WHERE id = ?`), id)
	return err
}

// ---------------------------------------------------------------------------
// Messages and conversations

const messageColumns = `id, sender_id, recipient_id, content, is_read, created_at`

const (
	insertMessageSQL = `
		INSERT INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?)`

	upsertConversationSQL = `
		INSERT INTO conversations (id, user_a, user_b, last_message_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_a, user_b) DO UPDATE
			SET last_message_id = excluded.last_message_id, updated_at = excluded.updated_at
		RETURNING id`

	incrementUnreadSQL = `
		INSERT INTO conversation_unread (conversation_id, user_id, unread_count) VALUES (?, ?, 1)
		ON CONFLICT (conversation_id, user_id) DO UPDATE
			SET unread_count = conversation_unread.unread_count + 1`

	ensureUnreadSQL = `
		INSERT INTO conversation_unread (conversation_id, user_id, unread_count) VALUES (?, ?, 0)
		ON CONFLICT (conversation_id, user_id) DO NOTHING`

	markReadSQL = `UPDATE messages SET is_read = ? WHERE id = ?`

	decrementUnreadSQL = `
		UPDATE conversation_unread SET unread_count = unread_count - 1
		WHERE user_id = ? AND unread_count > 0
			AND conversation_id = (SELECT id FROM conversations WHERE user_a = ? AND user_b = ?)`
)

// SendMessage persists msg and updates the conversation for its participant
// pair, creating it on first contact. Every conversation write is a single
// upsert, so concurrent sends never lose a counter increment.
func (s *sqlStore) SendMessage(ctx context.Context, msg *models.Message) (uuid.UUID, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.timestamp()
	}
	userA, userB := models.CanonicalPair(msg.SenderID, msg.RecipientID)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(insertMessageSQL),
		msg.ID, msg.SenderID, msg.RecipientID, msg.Content, msg.Read, msg.CreatedAt); err != nil {
		return uuid.Nil, fmt.Errorf("insert message: %w", err)
	}

	var convID uuid.UUID
	if err := tx.QueryRowxContext(ctx, s.q(upsertConversationSQL),
		crypto.NewUUIDv7(), userA, userB, msg.ID, msg.CreatedAt, msg.CreatedAt).Scan(&convID); err != nil {
		return uuid.Nil, fmt.Errorf("upsert conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.q(incrementUnreadSQL), convID, msg.RecipientID); err != nil {
		return uuid.Nil, fmt.Errorf("increment unread: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(ensureUnreadSQL), convID, msg.SenderID); err != nil {
		return uuid.Nil, fmt.Errorf("ensure sender unread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, err
	}
	return convID, nil
}

// GetMessage retrieves a message by ID.
func (s *sqlStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	m := &models.Message{}
	if err := s.db.GetContext(ctx, m, s.q(`SELECT `+messageColumns+` FROM messages WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// GetMessagesByIDs returns the messages that still exist among ids.
func (s *sqlStore) GetMessagesByIDs(ctx context.Context, ids []string) (map[string]models.Message, error) {
	out := make(map[string]models.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := s.in(`SELECT `+messageColumns+` FROM messages WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var msgs []models.Message
	if err := s.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.ID] = m
	}
	return out, nil
}

type conversationRow struct {
	ID            uuid.UUID `db:"id"`
	UserA         uuid.UUID `db:"user_a"`
	UserB         uuid.UUID `db:"user_b"`
	LastMessageID string    `db:"last_message_id"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r conversationRow) conversation() models.Conversation {
	return models.Conversation{
		ID:            r.ID,
		Participants:  [2]uuid.UUID{r.UserA, r.UserB},
		LastMessageID: r.LastMessageID,
		UnreadCount:   map[uuid.UUID]int{},
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

const conversationColumns = `id, user_a, user_b, last_message_id, created_at, updated_at`

// GetConversation retrieves a conversation with its unread counters.
func (s *sqlStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var row conversationRow
	err := s.db.GetContext(ctx, &row, s.q(`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	convs := []models.Conversation{row.conversation()}
	if err := s.loadUnread(ctx, convs); err != nil {
		return nil, err
	}
	return &convs[0], nil
}

// ListConversations returns the conversations userID takes part in, most
// recently active first.
func (s *sqlStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	var rows []conversationRow
	err := s.db.SelectContext(ctx, &rows, s.q(`
		SELECT `+conversationColumns+` FROM conversations
		WHERE user_a = ? OR user_b = ?
		ORDER BY updated_at DESC, id DESC
	`), userID, userID)
	if err != nil {
		return nil, err
	}

	convs := make([]models.Conversation, len(rows))
	for i, r := range rows {
		convs[i] = r.conversation()
	}
	if err := s.loadUnread(ctx, convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (s *sqlStore) loadUnread(ctx context.Context, convs []models.Conversation) error {
	if len(convs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(convs))
	byID := make(map[uuid.UUID]*models.Conversation, len(convs))
	for i := range convs {
		ids[i] = convs[i].ID
		byID[convs[i].ID] = &convs[i]
	}

	query, args, err := s.in(`
		SELECT conversation_id, user_id, unread_count FROM conversation_unread
		WHERE conversation_id IN (?)
	`, ids)
	if err != nil {
		return err
	}
	var counters []struct {
		ConversationID uuid.UUID `db:"conversation_id"`
		UserID         uuid.UUID `db:"user_id"`
		UnreadCount    int       `db:"unread_count"`
	}
	if err := s.db.SelectContext(ctx, &counters, query, args...); err != nil {
		return err
	}
	for _, c := range counters {
		byID[c.ConversationID].UnreadCount[c.UserID] = c.UnreadCount
	}
	return nil
}

// ListConversationMessages returns one page of the messages exchanged between
// a and b, newest first, together with the total count.
func (s *sqlStore) ListConversationMessages(ctx context.Context, a, b uuid.UUID, limit, offset int) ([]models.Message, int, error) {
	const where = `WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)`

	var total int
	if err := s.db.GetContext(ctx, &total, s.q(`SELECT COUNT(*) FROM messages `+where), a, b, b, a); err != nil {
		return nil, 0, err
	}

	msgs := []models.Message{}
	err := s.db.SelectContext(ctx, &msgs, s.q(`
		SELECT `+messageColumns+` FROM messages `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`), a, b, b, a, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// MarkMessageRead sets the read flag on msg and decrements the recipient's
// unread counter on the pair's conversation, never below zero.
func (s *sqlStore) MarkMessageRead(ctx context.Context, msg *models.Message) error {
	userA, userB := models.CanonicalPair(msg.SenderID, msg.RecipientID)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(markReadSQL), true, msg.ID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(decrementUnreadSQL), msg.RecipientID, userA, userB); err != nil {
		return fmt.Errorf("decrement unread: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	msg.Read = true
	return nil
}

// DeleteMessage hard-deletes a message. The conversation aggregate is left as is.
func (s *sqlStore) DeleteMessage(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM messages WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// CountMessages returns the number of stored messages.
func (s *sqlStore) CountMessages(ctx context.Context) (int64, error) {
	return s.count(ctx, "messages")
}
