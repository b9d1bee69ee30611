package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/gocql/gocql"

	"rentalhub/internal/app/policies"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ScyllaConfig selects the cluster that stores user notifications.
type ScyllaConfig struct {
	Hosts             []string
	Keyspace          string
	Consistency       gocql.Consistency
	Timeout           time.Duration
	Username          string
	Password          string
	ReplicationFactor int
}

// ScyllaNotifier appends notifications to a per-recipient timeline.
type ScyllaNotifier struct {
	session *gocql.Session
}

// NewScyllaSession ensures the keyspace and notifications table exist.
func NewScyllaSession(cfg ScyllaConfig, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(cfg.Keyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", cfg.Keyspace)
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}

	baseSession, err := newCluster(cfg, "").CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer baseSession.Close()

	ctx := context.Background()
	createKeyspace := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.Keyspace, cfg.ReplicationFactor,
	)
	if err := baseSession.Query(createKeyspace).WithContext(ctx).Exec(); err != nil {
		return nil, fmt.Errorf("create keyspace: %w", err)
	}

	session, err := newCluster(cfg, cfg.Keyspace).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", cfg.Keyspace, err)
	}
	createTable := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.notifications (
	recipient_id text,
	notification_id timeuuid,
	booking_id text,
	text text,
	created_at timestamp,
	PRIMARY KEY (recipient_id, notification_id)
) WITH CLUSTERING ORDER BY (notification_id DESC);`, cfg.Keyspace)
	if err := session.Query(createTable).WithContext(ctx).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("create notifications table: %w", err)
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", cfg.Hosts, "keyspace", cfg.Keyspace)
	}
	return session, nil
}

func newCluster(cfg ScyllaConfig, keyspace string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = cfg.Consistency
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
		cluster.ConnectTimeout = cfg.Timeout
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{Username: cfg.Username, Password: cfg.Password}
	}
	return cluster
}

func NewScyllaNotifier(session *gocql.Session) *ScyllaNotifier {
	return &ScyllaNotifier{session: session}
}

func (n *ScyllaNotifier) Notify(ctx context.Context, recipientID, bookingID, text string) error {
	if n.session == nil {
		return errors.New("scylla session not initialized")
	}
	return n.session.
		Query(`INSERT INTO notifications (recipient_id, notification_id, booking_id, text, created_at) VALUES (?, ?, ?, ?, ?)`,
			recipientID, gocql.TimeUUID(), bookingID, text, time.Now().UTC()).
		WithContext(ctx).
		Exec()
}

func (n *ScyllaNotifier) Close() error {
	if n.session != nil {
		n.session.Close()
	}
	return nil
}

var _ policies.Notifier = (*ScyllaNotifier)(nil)
