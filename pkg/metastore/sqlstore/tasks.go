package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/model"
)

const taskColumns = `id, user_id, name, cron, enabled, sftp_host, sftp_port, sftp_user,
	sftp_password, sftp_private_key, sftp_path, destination_id, destination_path, exclude_paths,
	compress, timestamp_names, encrypt, max_files, skip_prescan, priority,
	last_started, last_run, last_runtime_ms`

func scanTask(row interface{ Scan(...any) error }) (*model.Task, error) {
	t := &model.Task{}
	var password sql.NullString
	var privateKey []byte
	var excludePaths, compress string
	var lastStarted, lastRun sql.NullTime
	var lastRuntimeMS int64

	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Cron, &t.Enabled,
		&t.Credentials.Host, &t.Credentials.Port, &t.Credentials.User,
		&password, &privateKey, &t.SFTPPath, &t.DestinationID, &t.DestinationPath, &excludePaths,
		&compress, &t.TimestampNames, &t.Encrypt, &t.MaxFiles, &t.SkipPrescan, &t.Priority,
		&lastStarted, &lastRun, &lastRuntimeMS)
	if err != nil {
		return nil, err
	}

	if password.Valid {
		t.Credentials.Password = password.String
	}
	t.Credentials.PrivateKey = privateKey
	if excludePaths != "" {
		t.ExcludePaths = strings.Split(excludePaths, "\n")
	}
	t.Compress = model.Compression(compress)
	if lastStarted.Valid {
		v := lastStarted.Time
		t.LastStarted = &v
	}
	if lastRun.Valid {
		v := lastRun.Time
		t.LastRun = &v
	}
	t.LastRuntime = time.Duration(lastRuntimeMS) * time.Millisecond
	return t, nil
}

// CreateTask implements metastore.Store.
func (s *Store) CreateTask(ctx context.Context, t *model.Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.UserID, t.Name, t.Cron, t.Enabled,
		t.Credentials.Host, t.Credentials.Port, t.Credentials.User,
		nullableString(t.Credentials.Password), t.Credentials.PrivateKey,
		t.SFTPPath, t.DestinationID, t.DestinationPath, strings.Join(t.ExcludePaths, "\n"),
		string(t.Compress), t.TimestampNames, t.Encrypt, t.MaxFiles, t.SkipPrescan, t.Priority,
		t.LastStarted, t.LastRun, t.LastRuntime.Milliseconds(),
	)
	return translateErr(err)
}

// UpdateTask implements metastore.Store.
func (s *Store) UpdateTask(ctx context.Context, t *model.Task) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET name=?, cron=?, enabled=?, sftp_host=?, sftp_port=?, sftp_user=?,
			sftp_password=?, sftp_private_key=?, sftp_path=?, destination_id=?, destination_path=?,
			exclude_paths=?, compress=?, timestamp_names=?, encrypt=?, max_files=?, skip_prescan=?,
			priority=?, last_started=?, last_run=?, last_runtime_ms=?
		WHERE id=?`,
		t.Name, t.Cron, t.Enabled, t.Credentials.Host, t.Credentials.Port, t.Credentials.User,
		nullableString(t.Credentials.Password), t.Credentials.PrivateKey, t.SFTPPath, t.DestinationID,
		t.DestinationPath, strings.Join(t.ExcludePaths, "\n"), string(t.Compress), t.TimestampNames,
		t.Encrypt, t.MaxFiles, t.SkipPrescan, t.Priority, t.LastStarted, t.LastRun,
		t.LastRuntime.Milliseconds(), t.ID,
	)
	return translateErr(err)
}

// GetTask implements metastore.Store.
func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row)
	if isNoRows(err) {
		return nil, errtypes.NotFound(id)
	}
	return t, err
}

// ListEnabledTasks implements metastore.Store, for the scheduler to load at
// startup.
func (s *Store) ListEnabledTasks(ctx context.Context) ([]*model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE enabled=1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
